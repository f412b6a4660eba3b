package database

import (
	"context"
	"database/sql"

	"relaychat/server/internal/errors"
	"relaychat/server/internal/models"

	"github.com/lib/pq"
)

// Append records a message, deriving its conversation id from the pair of
// usernames rather than trusting a caller-supplied value.
func (db *DB) Append(ctx context.Context, sender, recipient, body string, delivered bool) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender, recipient, body, conversation_id, delivered)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sender, recipient, body, conversation_id, delivered, timestamp
	`

	var msg models.Message
	err := db.QueryRowContext(ctx, query, sender, recipient, body, models.ConversationID(sender, recipient), delivered).Scan(
		&msg.ID, &msg.Sender, &msg.Recipient, &msg.Body, &msg.ConversationID, &msg.Delivered, &msg.Timestamp,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return &msg, nil
}

// DrainAndMark reads every undelivered message for recipient and marks
// exactly those rows delivered, inside a single transaction. Scoping the
// UPDATE to the ids read in this transaction (rather than a blanket
// "recipient = $1 AND delivered = false") prevents a message that arrives
// mid-drain from being marked delivered without ever being emitted.
func (db *DB) DrainAndMark(ctx context.Context, recipient string) ([]models.Message, error) {
	var drained []models.Message

	err := db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, sender, recipient, body, conversation_id, delivered, timestamp
			FROM messages
			WHERE recipient = $1 AND delivered = false
			ORDER BY timestamp ASC, id ASC
			FOR UPDATE
		`, recipient)
		if err != nil {
			return errors.Wrap(err, errors.ErrStoreFailure)
		}

		ids := make([]int64, 0)
		for rows.Next() {
			var m models.Message
			if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Body, &m.ConversationID, &m.Delivered, &m.Timestamp); err != nil {
				rows.Close()
				return errors.Wrap(err, errors.ErrStoreFailure)
			}
			drained = append(drained, m)
			ids = append(ids, m.ID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return errors.Wrap(err, errors.ErrStoreFailure)
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE messages SET delivered = true WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
			return errors.Wrap(err, errors.ErrStoreFailure)
		}

		for i := range drained {
			drained[i].Delivered = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return drained, nil
}

// History returns the full conversation between a and b, in chronological
// order, regardless of which of the two was the sender on a given row.
func (db *DB) History(ctx context.Context, a, b string) ([]models.Message, error) {
	query := `
		SELECT id, sender, recipient, body, conversation_id, delivered, timestamp
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, models.ConversationID(a, b))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Body, &m.ConversationID, &m.Delivered, &m.Timestamp); err != nil {
			return nil, errors.Wrap(err, errors.ErrStoreFailure)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return messages, nil
}

// Contacts returns the distinct set of usernames user has ever exchanged a
// message with, sorted ascending.
func (db *DB) Contacts(ctx context.Context, user string) ([]string, error) {
	query := `
		SELECT DISTINCT CASE WHEN sender = $1 THEN recipient ELSE sender END AS other
		FROM messages
		WHERE sender = $1 OR recipient = $1
		ORDER BY other ASC
	`

	rows, err := db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}
	defer rows.Close()

	var contacts []string
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, errors.Wrap(err, errors.ErrStoreFailure)
		}
		contacts = append(contacts, other)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreFailure)
	}

	return contacts, nil
}
