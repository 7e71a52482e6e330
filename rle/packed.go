package rle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/icza/bitio"
)

// maxGammaPrefix bounds the unary prefix of an Elias-gamma count so the
// decoded value fits in an int.
const maxGammaPrefix = 62

// Packed binary format:
//
//	runCount = uvarint
//	bitstream (MSB first, zero padded to a byte):
//	  firstBit  = 1 bit
//	  counts    = runCount Elias-gamma codes
//
// Runs alternate, so only the first bit value is stored.

// MarshalPacked encodes canonical runs in the packed binary format.
func MarshalPacked(runs []Run) ([]byte, error) {
	if err := Validate(runs); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(binary.AppendUvarint(nil, uint64(len(runs))))
	if len(runs) == 0 {
		return buf.Bytes(), nil
	}

	w := bitio.NewWriter(&buf)
	if err := w.WriteBool(runs[0].Bit == '1'); err != nil {
		return nil, err
	}
	for _, r := range runs {
		if err := writeGamma(w, uint64(r.Count)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeGamma(w *bitio.Writer, n uint64) error {
	width := uint8(bits.Len64(n))
	if width > 1 {
		if err := w.WriteBits(0, width-1); err != nil {
			return err
		}
	}
	return w.WriteBits(n, width)
}

// UnmarshalPacked decodes the packed binary format.
func UnmarshalPacked(data []byte) ([]Run, error) {
	runCount, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad packed run count", ErrFormat)
	}
	rest := data[n:]
	// Every run takes at least one bit.
	if runCount > uint64(len(rest))*8 {
		return nil, fmt.Errorf("%w: packed run count %d exceeds payload of %d bytes", ErrFormat, runCount, len(rest))
	}

	runs := make([]Run, 0, int(runCount))
	if runCount == 0 {
		return runs, nil
	}

	r := bitio.NewReader(bytes.NewReader(rest))
	one, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("%w: read first bit: %v", ErrFormat, err)
	}
	bit := byte('0')
	if one {
		bit = '1'
	}
	total := uint64(0)
	for i := uint64(0); i < runCount; i++ {
		count, err := readGamma(r)
		if err != nil {
			return nil, fmt.Errorf("%w: run %d: %v", ErrFormat, i, err)
		}
		if count > MaxBits-total {
			return nil, fmt.Errorf("%w: run %d takes the total past %d bits", ErrFormat, i, MaxBits)
		}
		total += count
		runs = append(runs, Run{Count: int(count), Bit: bit})
		bit ^= '0' ^ '1'
	}
	return runs, nil
}

func readGamma(r *bitio.Reader) (uint64, error) {
	zeros := uint8(0)
	for {
		one, err := r.ReadBool()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if one {
			break
		}
		zeros++
		if zeros > maxGammaPrefix {
			return 0, fmt.Errorf("count prefix longer than %d bits", maxGammaPrefix)
		}
	}
	if zeros == 0 {
		return 1, nil
	}
	low, err := r.ReadBits(zeros)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return 1<<zeros | low, nil
}
