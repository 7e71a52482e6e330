package huffrle

import (
	"fmt"
	"io"
	"strings"

	"github.com/seiflotfy/huffrle/huffman"
	"github.com/seiflotfy/huffrle/rle"
)

// maxPayloadTextBytes bounds the textual payload accepted by ReadPayload.
const maxPayloadTextBytes = maxStagePayloadBytes

// WritePayload writes the runs in the textual count:bit wire format.
func (a *Artifact) WritePayload(w io.Writer) (int64, error) {
	return writeBytes(w, []byte(a.Payload()))
}

// WriteTable writes the code table in the code table file format.
func (a *Artifact) WriteTable(w io.Writer) (int64, error) {
	return huffman.WriteTable(w, a.Table)
}

// ReadPayload reads a textual count:bit payload. Leading and trailing white
// space, such as a final newline, is ignored.
func ReadPayload(r io.Reader) ([]rle.Run, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(data) > maxPayloadTextBytes {
		return nil, fmt.Errorf("%w: payload larger than %d bytes", rle.ErrFormat, maxPayloadTextBytes)
	}
	return rle.Parse(strings.TrimSpace(string(data)))
}

// LoadArtifact builds an artifact from a textual payload and a code table
// file. Statistics other than the Huffman and run-length sizes are unknown
// and left zero; no checksum is available.
func LoadArtifact(payload, table io.Reader) (*Artifact, error) {
	runs, err := ReadPayload(payload)
	if err != nil {
		return nil, err
	}
	bits, err := rle.Len(runs)
	if err != nil {
		return nil, err
	}
	codes, err := huffman.ReadTable(table)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Runs:  runs,
		Table: codes,
		Stats: newStats(0, bits, rle.Cost(runs), 0),
	}, nil
}
