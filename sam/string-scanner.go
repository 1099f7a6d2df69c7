package sam

import (
	"errors"
	"strconv"
)

// A StringScanner scans the tab-separated fields of one line in a SAM
// file.
//
// The zero StringScanner is valid and empty.
type StringScanner struct {
	index int
	data  string
	err   error
}

// Err returns the error that occurred during scanning/parsing.
func (sc *StringScanner) Err() error {
	return sc.err
}

// Reset resets the scanner, and initializes it with the given string.
func (sc *StringScanner) Reset(s string) {
	sc.index = 0
	sc.data = s
	sc.err = nil
}

// Len returns the number of ASCII characters that still need to be
// scanned/parsed. Returns 0 if Err() would return a non-nil value.
func (sc *StringScanner) Len() int {
	if sc.err != nil {
		return 0
	}
	return len(sc.data) - sc.index
}

// Rest returns the not yet scanned tail of the line.
func (sc *StringScanner) Rest() string {
	if sc.err != nil {
		return ""
	}
	return sc.data[sc.index:]
}

func (sc *StringScanner) readUntil(c byte) (s string, found bool) {
	if sc.err != nil {
		return "", false
	}
	start := sc.index
	for end := sc.index; end < len(sc.data); end++ {
		if sc.data[end] == c {
			sc.index = end + 1
			return sc.data[start:end], true
		}
	}
	sc.index = len(sc.data)
	return sc.data[start:], false
}

func (sc *StringScanner) doString() string {
	if sc.err != nil {
		return ""
	}
	value, ok := sc.readUntil('\t')
	if !ok {
		if sc.err == nil {
			sc.err = errors.New("missing tabulator in SAM alignment line")
		}
		return ""
	}
	return value
}

func (sc *StringScanner) doInt32() int32 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseInt(sc.doString(), 10, 32)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return int32(value)
}

func (sc *StringScanner) doUint(bitSize int) uint64 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseUint(sc.doString(), 10, bitSize)
	if (err != nil) && (sc.err == nil) {
		sc.err = err
	}
	return value
}
