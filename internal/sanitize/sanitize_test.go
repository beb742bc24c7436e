package sanitize

import (
	"strings"
	"testing"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_SizeLimit(t *testing.T) {
	limit := DefaultMaxInputSize

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Message(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessage_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "5")

	_, err := Message("123456")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	got, err := Message("12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", got)
}

func TestMessage_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMessage_Rejects(t *testing.T) {
	_, err := Message("\xff\xfe")
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = Message("   \n\t")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Message("\x00\x07")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.True(t, IsInvalid(err))
}

func TestConversationID(t *testing.T) {
	valid := []string{"abc", "4f1c1e9e-6d4e-4b43-9a55-1f1b1d1c1a10", "thread_1"}
	for _, id := range valid {
		assert.NoError(t, ConversationID(id), id)
	}

	invalid := []string{"", "../etc", "a/b", `a\b`, ".hidden", "with space", strings.Repeat("x", 129)}
	for _, id := range invalid {
		assert.ErrorIs(t, ConversationID(id), domain.ErrInvalidInput, id)
	}
}
