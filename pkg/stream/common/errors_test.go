package common

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamError(t *testing.T) {
	t.Run("message without cause", func(t *testing.T) {
		err := NewStreamError(StreamTypeICEcast, "http://x", ErrCodeRejected, "not audio", nil)
		assert.Equal(t, "not audio", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("message with cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewStreamError(StreamTypeICEcast, "http://x", ErrCodeDropped, "read failed", cause)
		assert.Equal(t, "read failed: connection reset", err.Error())
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("unwraps through wrapping", func(t *testing.T) {
		inner := NewStreamError(StreamTypeShoutcast, "http://x", ErrCodeDropped, "dropped", nil)
		wrapped := fmt.Errorf("attempt 2: %w", inner)
		assert.Equal(t, ErrCodeDropped, ErrorCode(wrapped))
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
	assert.Equal(t, ErrCodeTimeout,
		ErrorCode(NewStreamError(StreamTypeICEcast, "", ErrCodeTimeout, "t", nil)))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"dropped", NewStreamError(StreamTypeICEcast, "", ErrCodeDropped, "d", nil), true},
		{"connection", NewStreamError(StreamTypeICEcast, "", ErrCodeConnection, "c", nil), true},
		{"timeout", NewStreamError(StreamTypeICEcast, "", ErrCodeTimeout, "t", nil), true},
		{"rejected", NewStreamError(StreamTypeICEcast, "", ErrCodeRejected, "r", nil), false},
		{"invalid playlist", NewStreamError(StreamTypeShoutcast, "", ErrCodeInvalidPlaylist, "p", nil), false},
		{"no playable entry", NewStreamError(StreamTypeShoutcast, "", ErrCodeNoPlayableEntry, "n", nil), false},
		{"plain error", errors.New("boom"), false},
		{"wrapped dropped", fmt.Errorf("outer: %w", NewStreamError(StreamTypeICEcast, "", ErrCodeDropped, "d", nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
