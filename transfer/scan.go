package transfer

import "bytes"

// Find returns the absolute offset of the leftmost occurrence of delim in
// the unconsumed bytes of w.
func Find(w *Window, delim []byte) (int, bool) {
	i := bytes.Index(w.data[w.cursor:w.end], delim)
	if i < 0 {
		return 0, false
	}
	return w.cursor + i, true
}
