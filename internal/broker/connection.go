package broker

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"
)

// errFrameTooLarge terminates a connection whose peer sends more bytes
// than the frame cap without a newline.
var errFrameTooLarge = errors.New("frame exceeds size limit")

// Connection is the in-memory handle for one accepted socket once its
// handshake has completed. It implements presence.Handle, so the registry
// can write to and close it without knowing anything about framing.
type Connection struct {
	conn      net.Conn
	reader    *bufio.Reader
	username  string
	createdAt time.Time

	// writeMu serializes this connection's own replies (history dump,
	// contacts list, offline drain) against a delivery write arriving
	// from another connection's goroutine via the registry.
	writeMu sync.Mutex
}

func newConnection(c net.Conn) *Connection {
	return &Connection{
		conn:      c,
		reader:    bufio.NewReaderSize(c, maxSendFrameBytes),
		createdAt: time.Now(),
	}
}

// readFrame reads one newline-terminated frame, failing as soon as the
// accumulating line exceeds limit bytes. Reading in ReadSlice-sized steps
// keeps a peer that never sends a newline from growing the line without
// bound: at most limit plus one buffer's worth is ever held in memory.
func (c *Connection) readFrame(limit int) (string, error) {
	var line []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit+1 { // +1 for the trailing newline
			return "", errFrameTooLarge
		}
		if err == nil {
			return string(line), nil
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
	}
}

// Write sends a pre-formatted, already newline-terminated frame. It is the
// only method through which bytes reach the socket, so every reply — no
// matter which goroutine produces it — is serialized against every other.
func (c *Connection) Write(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(p)
	return err
}

// WriteString is a convenience wrapper around Write.
func (c *Connection) WriteString(s string) error {
	return c.Write([]byte(s))
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	return c.conn.Close()
}
