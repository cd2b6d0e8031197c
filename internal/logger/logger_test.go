package logger

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTokenPrefix(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"short", "abc", "abc"},
		{"exactly eight", "abcdefgh", "abcdefgh"},
		{"base64url", "Xy9_-Qk2LmNpT0aB", "Xy9_-Qk2"},
		{"multibyte", "ßßßßßßßßßß", "ßßßßßßßß"},
		{"invalid utf8", "ab\xffcdefghij", "ab�cdefg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenPrefix(tt.value)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
