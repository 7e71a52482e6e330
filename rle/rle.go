// Package rle implements the run-length stage of huffrle over bit strings
// made of the characters '0' and '1'.
package rle

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// ErrFormat indicates malformed run-length input.
var ErrFormat = errors.New("rle format error")

// MaxBits bounds the total number of bits a run list may describe.
const MaxBits = math.MaxInt32

// Run is a maximal group of identical bits.
type Run struct {
	Count int
	Bit   byte // '0' or '1'
}

// Encode groups bits into maximal runs. An empty input yields an empty,
// non-nil slice.
func Encode(bits string) ([]Run, error) {
	runs := make([]Run, 0, 16)
	for i := 0; i < len(bits); {
		b := bits[i]
		if b != '0' && b != '1' {
			return nil, fmt.Errorf("%w: invalid bit %q at offset %d", ErrFormat, b, i)
		}
		j := i + 1
		for j < len(bits) && bits[j] == b {
			j++
		}
		runs = append(runs, Run{Count: j - i, Bit: b})
		i = j
	}
	return runs, nil
}

// Decode expands runs back into a bit string. It fails on the first run with
// a non-positive count or a bit other than '0' and '1', and when the runs
// describe more than MaxBits bits.
func Decode(runs []Run) (string, error) {
	size, err := Len(runs)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(size)
	for _, r := range runs {
		for n := 0; n < r.Count; n++ {
			sb.WriteByte(r.Bit)
		}
	}
	return sb.String(), nil
}

func checkRun(r Run, index int) error {
	if r.Count < 1 {
		return fmt.Errorf("%w: run %d has non-positive count %d", ErrFormat, index, r.Count)
	}
	if r.Bit != '0' && r.Bit != '1' {
		return fmt.Errorf("%w: run %d has invalid bit %q", ErrFormat, index, r.Bit)
	}
	return nil
}

func checkTotal(total, count, index int) error {
	if count > MaxBits-total {
		return fmt.Errorf("%w: run %d takes the total past %d bits", ErrFormat, index, MaxBits)
	}
	return nil
}

// Validate checks that runs are in canonical form: positive counts, valid
// bits, no two adjacent runs with the same bit and at most MaxBits bits.
func Validate(runs []Run) error {
	total := 0
	for i, r := range runs {
		if err := checkRun(r, i); err != nil {
			return err
		}
		if err := checkTotal(total, r.Count, i); err != nil {
			return err
		}
		total += r.Count
		if i > 0 && runs[i-1].Bit == r.Bit {
			return fmt.Errorf("%w: runs %d and %d share bit %q", ErrFormat, i-1, i, r.Bit)
		}
	}
	return nil
}

// Len returns the number of bits described by runs. It checks every run and
// fails once the total would pass MaxBits.
func Len(runs []Run) (int, error) {
	n := 0
	for i, r := range runs {
		if err := checkRun(r, i); err != nil {
			return 0, err
		}
		if err := checkTotal(n, r.Count, i); err != nil {
			return 0, err
		}
		n += r.Count
	}
	return n, nil
}

// Cost returns the size in bits of runs under a minimal variable-length
// encoding of each (count, bit) pair: ceil(log2(count+1)) bits of count plus
// one bit of value.
func Cost(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += RunCost(r.Count)
	}
	return n
}

// RunCost returns ceil(log2(count+1)) + 1 for a positive count.
func RunCost(count int) int {
	// For count >= 1, bits.Len(count) == ceil(log2(count+1)).
	return bits.Len(uint(count)) + 1
}

// Canonical checks every run and merges adjacent runs that share a bit.
func Canonical(runs []Run) ([]Run, error) {
	out := make([]Run, 0, len(runs))
	total := 0
	for i, r := range runs {
		if err := checkRun(r, i); err != nil {
			return nil, err
		}
		if err := checkTotal(total, r.Count, i); err != nil {
			return nil, err
		}
		total += r.Count
		if n := len(out); n > 0 && out[n-1].Bit == r.Bit {
			out[n-1].Count += r.Count
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
