package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"", "", ""},
		{"Ada", "Ada", ""},
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"  Ada   King  Lovelace ", "Ada", "King Lovelace"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			first, last := SplitName(tt.in)
			require.Equal(t, tt.first, first)
			require.Equal(t, tt.last, last)
		})
	}
}

func TestJoinName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", JoinName("Ada", "Lovelace"))
	require.Equal(t, "Ada", JoinName("Ada", ""))
	require.Equal(t, "Lovelace", JoinName(" ", "Lovelace"))
}
