package terminal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  \t\r\n", nil},
		{"open ttyUSB0\r\n", []string{"open", "ttyUSB0"}},
		{"argv a 'b c' \"d e\"", []string{"argv", "a", "b c", "d e"}},
		{"argv ''", []string{"argv", ""}},
		{"argv 'unterminated rest", []string{"argv", "'unterminated rest"}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, splitArgs(tc.line), "line %q", tc.line)
	}
}
