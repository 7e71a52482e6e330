package huffman

import (
	"fmt"
	"slices"
)

// CodeTable maps each symbol to its code, a non-empty string of '0' and '1'.
type CodeTable map[Symbol]string

// Codes walks the tree rooted at root and returns a freshly allocated code
// table. A bare-leaf root (single-symbol alphabet) gets the code "0"; a nil
// root gets an empty table.
func Codes(root *Node) CodeTable {
	codes := make(CodeTable)
	if root == nil {
		return codes
	}
	if root.leaf {
		codes[root.symbol] = "0"
		return codes
	}
	root.Walk(func(n *Node, path string) bool {
		if n.leaf {
			codes[n.symbol] = path
			return false
		}
		return true
	})
	return codes
}

// Symbols returns the symbols of the table in ascending order.
func (t CodeTable) Symbols() []Symbol {
	symbols := make([]Symbol, 0, len(t))
	for s := range t {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)
	return symbols
}

// EncodedLen returns the number of bits needed to encode an input with the
// given frequencies. Symbols missing from the table are ignored.
func (t CodeTable) EncodedLen(freqs FrequencyTable) int {
	n := 0
	for s, c := range freqs {
		n += c * len(t[s])
	}
	return n
}

// Equal reports whether both tables assign the same codes.
func (t CodeTable) Equal(other CodeTable) bool {
	if len(t) != len(other) {
		return false
	}
	for s, code := range t {
		if oc, ok := other[s]; !ok || oc != code {
			return false
		}
	}
	return true
}

// Validate checks that every code is a non-empty bit string and that no code
// is a prefix of (or equal to) another.
func (t CodeTable) Validate() error {
	type entry struct {
		code   string
		symbol Symbol
	}
	entries := make([]entry, 0, len(t))
	for s, code := range t {
		if code == "" {
			return fmt.Errorf("%w: symbol %q has an empty code", ErrMalformedTable, s)
		}
		for i := 0; i < len(code); i++ {
			if code[i] != '0' && code[i] != '1' {
				return fmt.Errorf("%w: symbol %q code %q has invalid bit at position %d", ErrMalformedTable, s, code, i)
			}
		}
		entries = append(entries, entry{code: code, symbol: s})
	}

	// After sorting, a code that prefixes another sorts directly before a
	// code it prefixes, so adjacent pairs are enough.
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.code < b.code:
			return -1
		case a.code > b.code:
			return 1
		default:
			return int(a.symbol) - int(b.symbol)
		}
	})
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if len(prev.code) <= len(cur.code) && cur.code[:len(prev.code)] == prev.code {
			return fmt.Errorf("%w: code %q of symbol %q is a prefix of code %q of symbol %q",
				ErrMalformedTable, prev.code, prev.symbol, cur.code, cur.symbol)
		}
	}
	return nil
}

// Rebuild reconstructs the decoding tree implied by table. The table is
// validated first; an empty table yields a nil root.
func Rebuild(table CodeTable) (*Node, error) {
	if len(table) == 0 {
		return nil, nil
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	root := &Node{}
	for _, s := range table.Symbols() {
		code := table[s]
		cur := root
		for i := 0; i < len(code); i++ {
			next := &cur.left
			if code[i] == '1' {
				next = &cur.right
			}
			if *next == nil {
				*next = &Node{}
			}
			cur = *next
		}
		cur.symbol = s
		cur.leaf = true
	}
	return root, nil
}
