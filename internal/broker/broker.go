// Package broker implements the connection broker: the state machine that
// accepts long-lived client sockets, performs the handshake, drains each
// reconnecting user's spool, and multiplexes framed requests from every
// socket onto the presence registry and message log.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"relaychat/server/internal/models"
	"relaychat/server/internal/presence"
	"relaychat/server/internal/workers"
)

// timestampLayout renders a message timestamp for the wire protocol's
// offline-drain and chat-history frames.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MessageStore is the subset of the message log the broker depends on.
// *database.DB satisfies it; tests substitute an in-memory fake.
type MessageStore interface {
	Append(ctx context.Context, sender, recipient, body string, delivered bool) (*models.Message, error)
	DrainAndMark(ctx context.Context, recipient string) ([]models.Message, error)
	History(ctx context.Context, a, b string) ([]models.Message, error)
	Contacts(ctx context.Context, user string) ([]string, error)
}

// TokenVerifier is the subset of the token service the broker needs when
// handshake tokens are required. *auth.TokenService satisfies it.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Config governs the broker's resource limits and handshake policy.
type Config struct {
	// MaxConnections bounds the number of concurrently served sockets
	// (default 100, per the listen backlog).
	MaxConnections int
	// RequireToken, when true, requires the handshake frame to carry a
	// bearer token (<username>:<token>) that verifies to that same
	// username; a missing or mismatched token disconnects immediately.
	RequireToken bool
}

// Broker owns the listening socket and the pool of per-connection readers.
type Broker struct {
	store    MessageStore
	registry *presence.Registry
	tokens   TokenVerifier
	pool     *workers.ConnectionPool
	cfg      Config

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Broker. pool bounds concurrent connection handling to
// cfg.MaxConnections.
func New(store MessageStore, registry *presence.Registry, tokens TokenVerifier, pool *workers.ConnectionPool, cfg Config) *Broker {
	return &Broker{
		store:    store,
		registry: registry,
		tokens:   tokens,
		pool:     pool,
		cfg:      cfg,
		quit:     make(chan struct{}),
	}
}

// ListenAndServe binds host:port and accepts connections until Shutdown is
// called. It blocks for the lifetime of the listener, the way fiber's
// app.Listen does for the HTTP gateway.
func (b *Broker) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return b.Serve(ln)
}

// Serve accepts connections on ln, submitting each to the bounded
// connection pool, until the listener is closed by Shutdown.
func (b *Broker) Serve(ln net.Listener) error {
	b.listener = ln
	slog.Info("messaging broker listening", "addr", ln.Addr().String(), "max_connections", b.cfg.MaxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept failed", "error", err)
			continue
		}

		b.wg.Add(1)
		b.pool.Submit(func() {
			defer b.wg.Done()
			b.handleConnection(conn)
		})
	}
}

// Shutdown stops accepting new connections, closes the listener,
// interrupts the blocking read of every connection bound in the registry by
// closing its socket, and waits (bounded by ctx) for all connection tasks to
// terminate. A connection still in its handshake is not closed here.
func (b *Broker) Shutdown(ctx context.Context) error {
	close(b.quit)
	if b.listener != nil {
		b.listener.Close()
	}
	b.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		if b.pool != nil {
			b.pool.Shutdown()
		}
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConnection runs the full lifecycle of one socket: handshake, spool
// drain, steady-state dispatch loop, then unbind-and-close. All state
// mutations here are idempotent under repeated termination.
func (b *Broker) handleConnection(netConn net.Conn) {
	c := newConnection(netConn)

	username, err := b.handshake(c)
	if err != nil {
		slog.Debug("handshake failed", "remote", netConn.RemoteAddr(), "error", err)
		netConn.Close()
		return
	}
	c.username = username

	b.registry.Bind(username, c)
	defer func() {
		b.registry.Unbind(c)
		netConn.Close()
	}()

	ctx := context.Background()
	b.drainOffline(ctx, c)
	b.serveConnection(ctx, c)
}

// handshake reads the first frame and returns the bound username. With
// RequireToken, the frame must be "<username>:<token>" and the token must
// verify to that same username. Without it, a ":<token>" suffix is ignored.
func (b *Broker) handshake(c *Connection) (string, error) {
	line, err := c.readFrame(maxControlFrameBytes)
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")

	username := strings.TrimSpace(line)
	if !b.cfg.RequireToken {
		if i := strings.IndexByte(username, ':'); i >= 0 {
			username = strings.TrimSpace(username[:i])
		}
		if username == "" {
			return "", errors.New("empty handshake frame")
		}
		return username, nil
	}

	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
		return "", errors.New("missing handshake token")
	}
	claimed := strings.TrimSpace(parts[0])
	verified, err := b.tokens.Verify(parts[1])
	if err != nil || verified != claimed {
		return "", errors.New("invalid handshake token")
	}
	return claimed, nil
}

// drainOffline emits every spooled message for c's username, in order, in
// a single write so it cannot be interleaved by a concurrent delivery to
// this same connection.
func (b *Broker) drainOffline(ctx context.Context, c *Connection) {
	messages, err := b.store.DrainAndMark(ctx, c.username)
	if err != nil {
		slog.Error("drain undelivered failed", "username", c.username, "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	var out strings.Builder
	out.WriteString("Server: You have ")
	out.WriteString(strconv.Itoa(len(messages)))
	out.WriteString(" offline message(s):\n")
	for _, m := range messages {
		out.WriteString("[OFFLINE] ")
		out.WriteString(m.Sender)
		out.WriteString(" (")
		out.WriteString(m.Timestamp.UTC().Format(timestampLayout))
		out.WriteString("): ")
		out.WriteString(m.Body)
		out.WriteString("\n")
	}

	if err := c.WriteString(out.String()); err != nil {
		slog.Debug("offline drain write failed", "username", c.username, "error", err)
	}
}

// serveConnection is the steady-state read loop: classify each frame by
// prefix and dispatch. It returns on read error, EOF, or an oversize frame.
func (b *Broker) serveConnection(ctx context.Context, c *Connection) {
	for {
		line, err := c.readFrame(maxSendFrameBytes)
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, prefixContacts):
			if len(line) > maxControlFrameBytes {
				return
			}
			b.handleContacts(ctx, c, strings.TrimPrefix(line, prefixContacts))
		case strings.HasPrefix(line, prefixHistory):
			if len(line) > maxControlFrameBytes {
				return
			}
			b.handleHistory(ctx, c, strings.TrimPrefix(line, prefixHistory))
		default:
			b.handleSend(ctx, c, line)
		}
	}
}
