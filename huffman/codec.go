package huffman

import (
	"fmt"
	"strings"
)

// Encode replaces every symbol of text with its code from table. The table
// must be a valid prefix code and must cover every symbol of text.
func Encode(text string, table CodeTable) (string, error) {
	if len(text) == 0 {
		return "", nil
	}
	if err := table.Validate(); err != nil {
		return "", err
	}

	var lookup [256]string
	size := 0
	for s, code := range table {
		lookup[s] = code
	}
	for i := 0; i < len(text); i++ {
		code := lookup[text[i]]
		if code == "" {
			return "", fmt.Errorf("%w %q at offset %d", ErrUnknownSymbol, text[i], i)
		}
		size += len(code)
	}

	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < len(text); i++ {
		sb.WriteString(lookup[text[i]])
	}
	return sb.String(), nil
}

// Decode walks the tree rooted at root, one bit at a time, emitting a symbol
// and restarting at the root whenever a leaf is reached. Nothing is returned
// on error.
func Decode(bits string, root *Node) (string, error) {
	if root == nil {
		return "", ErrEmptyTree
	}
	if root.leaf {
		return decodeSingle(bits, root.symbol)
	}

	out := make([]byte, 0, len(bits)/2)
	cur := root
	start := 0
	for i := 0; i < len(bits); i++ {
		switch bits[i] {
		case '0':
			cur = cur.left
		case '1':
			cur = cur.right
		default:
			return "", fmt.Errorf("%w %q at offset %d", ErrInvalidBit, bits[i], i)
		}
		if cur == nil {
			return "", fmt.Errorf("%w: no code for path %q at offset %d", ErrMalformedStream, bits[start:i+1], start)
		}
		if cur.leaf {
			out = append(out, cur.symbol)
			cur = root
			start = i + 1
		}
	}
	if cur != root {
		return "", fmt.Errorf("%w: stream ends inside code %q at offset %d", ErrMalformedStream, bits[start:], start)
	}
	return string(out), nil
}

// decodeSingle handles a tree that is a bare leaf, whose only code is "0".
func decodeSingle(bits string, s Symbol) (string, error) {
	for i := 0; i < len(bits); i++ {
		switch bits[i] {
		case '0':
		case '1':
			return "", fmt.Errorf("%w: no code for path \"1\" at offset %d", ErrMalformedStream, i)
		default:
			return "", fmt.Errorf("%w %q at offset %d", ErrInvalidBit, bits[i], i)
		}
	}
	return strings.Repeat(string([]byte{s}), len(bits)), nil
}
