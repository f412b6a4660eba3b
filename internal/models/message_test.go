package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConversationID_Canonical checks that the conversation id is always
// min(a,b)+":"+max(a,b), independent of argument order.
func TestConversationID_Canonical(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{"alice", "bob", "alice:bob"},
		{"bob", "alice", "alice:bob"},
		{"carol", "carol", "carol:carol"},
		{"Zed", "ann", "Zed:ann"}, // case-sensitive ordering, not case-folded
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ConversationID(tc.a, tc.b))
	}
}

func TestConversationID_OrderIndependent(t *testing.T) {
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
}
