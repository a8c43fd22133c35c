package chattypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession("20240101_090000")

	assert.Equal(t, "20240101_090000", s.ID)
	require.NotNil(t, s.Messages)
	assert.Empty(t, s.Messages)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
}

func TestSession_AppendBumpsUpdatedAt(t *testing.T) {
	s := NewSession("20240101_090000")
	before := s.UpdatedAt

	time.Sleep(time.Millisecond)
	s.Append(Message{Role: RoleUser, Content: "hi"})

	require.Len(t, s.Messages, 1)
	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.True(t, s.UpdatedAt.After(before))
}

func TestUploadCandidate_Size(t *testing.T) {
	tests := []struct {
		name      string
		candidate UploadCandidate
		want      int64
	}{
		{"declared size wins", UploadCandidate{Data: []byte("abc"), DeclaredSize: 100}, 100},
		{"zero declared is honored", UploadCandidate{Data: []byte("abc"), DeclaredSize: 0}, 0},
		{"negative falls back to data length", UploadCandidate{Data: []byte("abc"), DeclaredSize: -1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.candidate.Size())
		})
	}
}

func TestControllerState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_input", StateAwaitingInput.String())
	assert.Equal(t, "validating", StateValidating.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "unknown", ControllerState(99).String())
}
