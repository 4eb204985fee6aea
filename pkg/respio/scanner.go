package respio

// FindTerminator returns the offset of the first CRLF in buf. The loop stops at
// len(buf)-2 so the second byte of a candidate match is always inside buf.
func FindTerminator(buf []byte) (int, bool) {
	last := len(buf) - len(terminator)
	for i := 0; i <= last; i++ {
		if buf[i] == terminator[0] && buf[i+1] == terminator[1] {
			return i, true
		}
	}
	return -1, false
}

func hasTerminatorSuffix(buf []byte) bool {
	n := len(buf)
	return n >= len(terminator) && buf[n-2] == terminator[0] && buf[n-1] == terminator[1]
}
