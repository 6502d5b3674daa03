package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionLength(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		pc   int
		want int
	}{
		{"nop", []byte{0x00}, 0, 1},
		{"bipush", []byte{0x10, 7}, 0, 2},
		{"sipush", []byte{0x11, 0, 7}, 0, 3},
		{"goto", []byte{0xa7, 0, 3}, 0, 3},
		{"invokeinterface", []byte{0xb9, 0, 1, 1, 0}, 0, 5},
		{"multianewarray", []byte{0xc5, 0, 1, 2}, 0, 4},
		{"goto_w", []byte{0xc8, 0, 0, 0, 5}, 0, 5},
		{"wide iload", []byte{0xc4, 0x15, 1, 0}, 0, 4},
		{"wide iinc", []byte{0xc4, 0x84, 0, 1, 0, 1}, 0, 6},
		{
			"tableswitch aligned at 3",
			[]byte{0, 0, 0, 0xaa, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
			3, 21,
		},
		{
			"lookupswitch with padding",
			[]byte{0xab, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 9, 0, 0, 0, 4},
			0, 20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := instructionLength(tt.code, tt.pc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	t.Run("undefined opcode", func(t *testing.T) {
		_, err := instructionLength([]byte{0xcb}, 0)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("truncated switch", func(t *testing.T) {
		_, err := instructionLength([]byte{0xaa, 0, 0, 0, 0}, 0)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("inverted tableswitch", func(t *testing.T) {
		code := []byte{0xaa, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 1}
		_, err := instructionLength(code, 0)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
