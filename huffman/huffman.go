// Package huffman implements the entropy-coding stage of huffrle: symbol
// frequency counting, Huffman tree construction, code table generation and
// the bit-level encoder/decoder.
//
// Bit strings are Go strings made of the characters '0' and '1'. Symbols are
// single bytes, so any Go string round-trips through Encode and Decode.
package huffman

import "errors"

// Symbol is one unit of the compressed alphabet.
type Symbol = byte

// FrequencyTable maps every symbol present in an input to its number of
// occurrences.
type FrequencyTable map[Symbol]int

var (
	// ErrUnknownSymbol indicates the input contains a symbol that has no code.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrInvalidBit indicates a bit string contains something other than '0' or '1'.
	ErrInvalidBit = errors.New("invalid bit")
	// ErrMalformedStream indicates a bit string does not match the tree it is decoded with.
	ErrMalformedStream = errors.New("malformed bit stream")
	// ErrEmptyTree indicates decoding was attempted without a tree.
	ErrEmptyTree = errors.New("empty tree")
	// ErrMalformedTable indicates a code table is not a usable prefix code.
	ErrMalformedTable = errors.New("malformed code table")
)

// Count builds the frequency table of text.
func Count(text string) FrequencyTable {
	freqs := make(FrequencyTable)
	for i := 0; i < len(text); i++ {
		freqs[text[i]]++
	}
	return freqs
}

// Total returns the number of symbols counted.
func (f FrequencyTable) Total() int {
	n := 0
	for _, c := range f {
		n += c
	}
	return n
}
