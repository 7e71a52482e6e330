package rle

import (
	"fmt"
	"strconv"
	"strings"
)

// Textual wire format: comma-separated count:bit tokens, e.g. "3:0,4:1,3:0".
// An empty run list is the empty string.

// Format renders runs in the textual wire format.
func Format(runs []Run) string {
	var sb strings.Builder
	sb.Grow(len(runs) * 4)
	for i, r := range runs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(r.Count))
		sb.WriteByte(':')
		sb.WriteByte(r.Bit)
	}
	return sb.String()
}

// Parse reads the textual wire format. Counts are plain decimal with no sign
// or leading zeros. It fails on the first malformed token.
func Parse(s string) ([]Run, error) {
	runs := make([]Run, 0, strings.Count(s, ",")+1)
	if s == "" {
		return runs, nil
	}
	for i, tok := range strings.Split(s, ",") {
		countText, bitText, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, fmt.Errorf("%w: token %d %q: missing ':' separator", ErrFormat, i, tok)
		}
		if countText == "" || countText[0] < '1' || countText[0] > '9' {
			return nil, fmt.Errorf("%w: token %d %q: count must start with a digit 1-9", ErrFormat, i, tok)
		}
		count, err := strconv.Atoi(countText)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d %q: bad count: %v", ErrFormat, i, tok, err)
		}
		if count < 1 {
			return nil, fmt.Errorf("%w: token %d %q: non-positive count", ErrFormat, i, tok)
		}
		if bitText != "0" && bitText != "1" {
			return nil, fmt.Errorf("%w: token %d %q: bad bit %q", ErrFormat, i, tok, bitText)
		}
		runs = append(runs, Run{Count: count, Bit: bitText[0]})
	}
	return runs, nil
}

// DecodeString parses the textual wire format and expands it to bits.
func DecodeString(s string) (string, error) {
	runs, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Decode(runs)
}

// EncodeString run-length encodes bits straight to the textual wire format.
func EncodeString(bits string) (string, error) {
	runs, err := Encode(bits)
	if err != nil {
		return "", err
	}
	return Format(runs), nil
}
