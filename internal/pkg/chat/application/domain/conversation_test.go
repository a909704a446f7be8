package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKeyIsSymmetric(t *testing.T) {
	assert.Equal(t, DeriveKey("alice", "bob"), DeriveKey("bob", "alice"))
	assert.Equal(t, "alice|bob", DeriveKey("bob", "alice"))
}

func TestDeriveKeyOrdersLexicographically(t *testing.T) {
	// byte order, not numeric: "driver-10" sorts before "driver-2"
	assert.Equal(t, "driver-10|driver-2", DeriveKey("driver-2", "driver-10"))
	assert.Equal(t, "A|a", DeriveKey("a", "A"))
}

func TestOtherParticipant(t *testing.T) {
	conv := Conversation{
		Key: DeriveKey("alice", "bob"),
		Participants: []Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
	}

	other, ok := conv.Other("alice")
	assert.True(t, ok)
	assert.Equal(t, "bob", other.ID)
	assert.Equal(t, "Bob", other.DisplayName)

	_, ok = conv.Other("carol")
	assert.False(t, ok, "non-member must not resolve an other side")
}

func TestOtherRejectsMalformedMetadata(t *testing.T) {
	missingName := Conversation{
		Participants: []Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob"},
		},
	}
	_, ok := missingName.Other("alice")
	assert.False(t, ok)

	tooMany := Conversation{
		Participants: []Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
			{ID: "carol", DisplayName: "Carol"},
		},
	}
	_, ok = tooMany.Other("alice")
	assert.False(t, ok)
}

func TestHasParticipant(t *testing.T) {
	conv := Conversation{
		Participants: []Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
	}
	assert.True(t, conv.HasParticipant("bob"))
	assert.False(t, conv.HasParticipant("carol"))
}
