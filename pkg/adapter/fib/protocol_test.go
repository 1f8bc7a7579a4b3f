package fib

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex(t *testing.T) {
	valid := []struct {
		payload string
		want    int
	}{
		{"0", 0},
		{"10", 10},
		{"10\n", 10},
		{"  42\r\n", 42},
		{"\t7 ", 7},
		{"+5", 5},
		{"-0", 0},
	}
	for _, tc := range valid {
		t.Run("valid/"+tc.payload, func(t *testing.T) {
			got, err := ParseIndex([]byte(tc.payload), 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []string{"", "   ", "\n", "abc", "-5", "1.5", "10 20", "0x10", "99999999999999999999999"}
	for _, payload := range invalid {
		t.Run("invalid/"+payload, func(t *testing.T) {
			_, err := ParseIndex([]byte(payload), 0)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestParseIndex_MaxIndex(t *testing.T) {
	got, err := ParseIndex([]byte("100"), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, got)

	_, err = ParseIndex([]byte("101"), 100)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFormatReply(t *testing.T) {
	assert.Equal(t, "0\n", string(FormatReply(big.NewInt(0))))
	assert.Equal(t, "55\n", string(FormatReply(big.NewInt(55))))

	v, ok := new(big.Int).SetString("354224848179261915075", 10)
	require.True(t, ok)
	assert.Equal(t, "354224848179261915075\n", string(FormatReply(v)))
}
