package console

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeNewlines(t *testing.T) {
	cases := map[string]string{
		"a\rb\nc\r\nd": "a\r\nb\r\nc\r\nd",
		"":             "",
		"plain":        "plain",
		"\n\n":         "\r\n\r\n",
		"\r\r":         "\r\n\r\n",
		"end\r":        "end\r\n",
		"\n\r":         "\r\n\r\n",
	}
	for in, want := range cases {
		got := NormalizeNewlines([]byte(in))
		require.Equal(t, want, string(got), "input %q", in)
		require.Equal(t, want, string(NormalizeNewlines(got)), "second pass over %q", in)
	}
}

func TestInputNormalizer(t *testing.T) {
	var n inputNormalizer
	var got []byte
	for _, c := range []byte("a\rb\nc\r\nd") {
		out, end := n.feed(c)
		require.False(t, end)
		got = append(got, out...)
	}
	require.Equal(t, "a\r\nb\r\nc\r\nd", string(got))

	out, end := n.feed(eot)
	require.True(t, end)
	require.Empty(t, out)
}

func TestQueue_PopLine(t *testing.T) {
	q := newQueue()
	q.push([]byte("ab\ncd")...)

	line, found := q.popLine(nil, lf, -1)
	require.True(t, found)
	require.Equal(t, "ab\n", string(line))

	line, found = q.popLine(nil, lf, 1)
	require.False(t, found)
	require.Equal(t, "c", string(line))
	require.Equal(t, 1, q.len())

	_, changed := q.state()
	q.push('x')
	select {
	case <-changed:
	default:
		t.Fatal("push did not signal")
	}

	p := make([]byte, 8)
	require.Equal(t, 2, q.pop(p))
	require.Equal(t, "dx", string(p[:2]))
	require.Zero(t, q.len())
}

func TestModeFlags_String(t *testing.T) {
	require.Equal(t, "echo|insert|line|quickedit", LineInputMode.String())
	require.Equal(t, "none", ModeFlags(0).String())
}
