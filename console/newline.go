package console

const (
	cr  = '\r'
	lf  = '\n'
	eot = 0x04
)

// NormalizeNewlines rewrites every bare CR and every bare LF as CR LF.
// Existing CR LF pairs are kept, so the result is a fixed point:
// "a\rb\nc\r\nd" becomes "a\r\nb\r\nc\r\nd".
func NormalizeNewlines(p []byte) []byte {
	out := make([]byte, 0, len(p)+len(p)/8+1)
	var prev byte
	for _, c := range p {
		switch {
		case prev == cr && c != lf:
			out = append(out, lf)
		case c == lf && prev != cr:
			out = append(out, cr)
		}
		out = append(out, c)
		prev = c
	}
	if prev == cr {
		out = append(out, lf)
	}
	return out
}

// inputNormalizer is the streaming form of NormalizeNewlines for keyboard
// input in character mode, one byte at a time. A CR is emitted as CR LF
// right away, so the LF of a CR LF pair that follows it is dropped.
type inputNormalizer struct {
	afterCR bool
}

// feed returns the bytes to enqueue for c, and whether c is end of
// transmission.
func (n *inputNormalizer) feed(c byte) (out []byte, end bool) {
	afterCR := n.afterCR
	n.afterCR = c == cr
	switch c {
	case cr:
		return []byte{cr, lf}, false
	case lf:
		if afterCR {
			return nil, false
		}
		return []byte{cr, lf}, false
	case eot:
		return nil, true
	}
	return []byte{c}, false
}
