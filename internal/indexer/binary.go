package indexer

import (
	"io"
	"os"
)

// sniffLen is how many leading bytes decide text versus binary.
const sniffLen = 1024

// textBytes marks every byte value that can appear in text: the common
// control characters (bell, backspace, tab, newline, form feed, carriage
// return, escape) plus all printable bytes, minus DEL.
var textBytes = func() [256]bool {
	var t [256]bool
	for _, b := range []byte{0x07, 0x08, 0x09, 0x0A, 0x0C, 0x0D, 0x1B} {
		t[b] = true
	}
	for b := 0x20; b <= 0xFF; b++ {
		t[b] = true
	}
	t[0x7F] = false
	return t
}()

// IsBinaryData reports whether data contains any byte outside the text
// byte set. Only the first sniffLen bytes are examined. Empty data is
// text.
func IsBinaryData(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	for _, b := range data {
		if !textBytes[b] {
			return true
		}
	}
	return false
}

// SniffFile reads the leading bytes of the file at path and classifies it.
func SniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return IsBinaryData(buf[:n]), nil
}
