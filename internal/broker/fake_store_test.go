package broker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"relaychat/server/internal/models"
)

// errorStore fails every operation, for exercising the broker's inline
// error-frame paths without a real store failure.
type errorStore struct{}

func (errorStore) Append(context.Context, string, string, string, bool) (*models.Message, error) {
	return nil, errors.New("store unavailable")
}

func (errorStore) DrainAndMark(context.Context, string) ([]models.Message, error) {
	return nil, errors.New("store unavailable")
}

func (errorStore) History(context.Context, string, string) ([]models.Message, error) {
	return nil, errors.New("store unavailable")
}

func (errorStore) Contacts(context.Context, string) ([]string, error) {
	return nil, errors.New("store unavailable")
}

// fakeStore is a minimal in-memory stand-in for the Message Log, used so
// broker tests don't need a live Postgres instance. It mirrors the
// semantics of internal/database/message.go closely enough to exercise
// the broker's dispatch logic.
type fakeStore struct {
	mu       sync.Mutex
	messages []models.Message
	nextID   int64
	base     time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeStore) Append(_ context.Context, sender, recipient, body string, delivered bool) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m := models.Message{
		ID:             s.nextID,
		Sender:         sender,
		Recipient:      recipient,
		Body:           body,
		ConversationID: models.ConversationID(sender, recipient),
		Delivered:      delivered,
		Timestamp:      s.base.Add(time.Duration(s.nextID) * time.Millisecond),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *fakeStore) DrainAndMark(_ context.Context, recipient string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drained []models.Message
	for i := range s.messages {
		if s.messages[i].Recipient == recipient && !s.messages[i].Delivered {
			s.messages[i].Delivered = true
			drained = append(drained, s.messages[i])
		}
	}
	sort.Slice(drained, func(i, j int) bool {
		if drained[i].Timestamp.Equal(drained[j].Timestamp) {
			return drained[i].ID < drained[j].ID
		}
		return drained[i].Timestamp.Before(drained[j].Timestamp)
	})
	return drained, nil
}

func (s *fakeStore) History(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cid := models.ConversationID(a, b)
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == cid {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *fakeStore) Contacts(_ context.Context, user string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := map[string]struct{}{}
	for _, m := range s.messages {
		switch user {
		case m.Sender:
			set[m.Recipient] = struct{}{}
		case m.Recipient:
			set[m.Sender] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}
