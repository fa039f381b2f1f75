package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeISBN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "978-0-441-01359-3", want: "9780441013593", ok: true},
		{input: "0441013597", want: "0441013597", ok: true},
		{input: "0-8044-2957-x", want: "080442957X", ok: true},
		{input: "9780441013594", want: "9780441013594", ok: false},
		{input: "0441013598", want: "0441013598", ok: false},
		{input: "X441013597", want: "X441013597", ok: false},
		{input: "12345", want: "12345", ok: false},
		{input: "", want: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := NormalizeISBN(tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
	}
}
