package broker

import (
	"context"
	"log/slog"
	"strings"

	"relaychat/server/internal/validation"
)

// handleSend processes a "<sender>:<recipient>:<body>" frame. The frame's
// own sender field is parsed for wire compatibility but discarded: the
// handshake-bound identity is trusted instead. The registry mutex is held
// across both the recipient lookup and the destination write, so two sends
// from this connection are observed by the recipient in send order. A frame
// without two colons is answered with an inline "Server:" error line.
func (b *Broker) handleSend(ctx context.Context, c *Connection, line string) {
	firstColon := strings.IndexByte(line, ':')
	secondColon := -1
	if firstColon >= 0 {
		secondColon = strings.IndexByte(line[firstColon+1:], ':')
	}
	if secondColon < 0 {
		if err := c.WriteString("Server: Invalid message format.\n"); err != nil {
			slog.Debug("reject write failed", "sender", c.username, "error", err)
		}
		return
	}
	secondColon += firstColon + 1

	recipient := line[firstColon+1 : secondColon]
	body := line[secondColon+1:]
	sender := c.username

	if err := validation.ValidateMessageBody(body); err != nil {
		if werr := c.WriteString("Server: Message body too large.\n"); werr != nil {
			slog.Debug("reject write failed", "sender", sender, "error", werr)
		}
		return
	}

	delivered := b.registry.Deliver(recipient, []byte(sender+": "+body+"\n"))

	if _, err := b.store.Append(ctx, sender, recipient, body, delivered); err != nil {
		slog.Error("failed to persist message", "sender", sender, "recipient", recipient, "error", err)
		return
	}

	if !delivered {
		if err := c.WriteString("Server: Message stored for offline user '" + recipient + "'.\n"); err != nil {
			slog.Debug("offline ack write failed", "sender", sender, "error", err)
		}
	}
}

// handleContacts answers "GET_CONTACTS_FOR:<username>" with the distinct
// set of counterparties that username has ever exchanged a message with.
func (b *Broker) handleContacts(ctx context.Context, c *Connection, rest string) {
	username := strings.TrimSpace(rest)

	contacts, err := b.store.Contacts(ctx, username)
	if err != nil {
		slog.Error("contacts lookup failed", "username", username, "error", err)
		c.WriteString("Server: Error retrieving contacted users\n")
		return
	}

	c.WriteString("CONTACTED_USERS:" + strings.Join(contacts, ",") + "\n")
}

// handleHistory answers "GET_CHAT_HISTORY:<self>:<other>" with the full
// conversation between the pair, framed by START/END markers. The whole
// dump is assembled and written as a single Connection.Write so it cannot
// be interleaved by a concurrent delivery to this same connection.
func (b *Broker) handleHistory(ctx context.Context, c *Connection, rest string) {
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		c.WriteString("CHAT_HISTORY_ERROR:malformed request\n")
		return
	}
	self, other := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	messages, err := b.store.History(ctx, self, other)
	if err != nil {
		slog.Error("history lookup failed", "self", self, "other", other, "error", err)
		c.WriteString("CHAT_HISTORY_ERROR:" + err.Error() + "\n")
		return
	}

	var out strings.Builder
	out.WriteString("CHAT_HISTORY_START:")
	out.WriteString(self)
	out.WriteString(":")
	out.WriteString(other)
	out.WriteString("\n")

	for _, m := range messages {
		out.WriteString("CHAT_HISTORY_MSG:")
		out.WriteString(m.Sender)
		out.WriteString(":")
		out.WriteString(m.Recipient)
		out.WriteString(":")
		out.WriteString(m.Body)
		out.WriteString(":")
		out.WriteString(m.Timestamp.UTC().Format(timestampLayout))
		out.WriteString(":")
		if m.Delivered {
			out.WriteString("true")
		} else {
			out.WriteString("false")
		}
		out.WriteString("\n")
	}

	out.WriteString("CHAT_HISTORY_END:")
	out.WriteString(self)
	out.WriteString(":")
	out.WriteString(other)
	out.WriteString("\n")

	if err := c.WriteString(out.String()); err != nil {
		slog.Debug("history write failed", "self", self, "other", other, "error", err)
	}
}
