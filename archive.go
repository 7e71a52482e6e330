package huffrle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/icza/bitio"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/seiflotfy/huffrle/huffman"
	"github.com/seiflotfy/huffrle/rle"
)

const (
	archiveMagic   = "HRLE"
	archiveVersion = uint16(1)

	stageCodeTable = "code_table"
	stageRuns      = "runs"
	stageChecksum  = "checksum"
	stageStats     = "stats"

	stageRunsParamRaw   = uint8(1) // packed runs
	stageRunsParamFlate = uint8(2) // flate(packed runs)
	stageRunsParamZstd  = uint8(3) // zstd(packed runs)

	maxArchiveStages     = 64
	maxStagePayloadBytes = 1 << 30 // 1 GiB
	maxCodeBits          = 255
	statsStageBytes      = 3 * 8
)

// Wire format (version 1):
//
//	magic[4] = "HRLE"
//	version  = uint16 little-endian
//	stageCnt = uint16 little-endian
//	repeat stageCnt times:
//	  nameLen  = uint8
//	  paramLen = uint16 little-endian
//	  dataLen  = uint32 little-endian
//	  name     = nameLen bytes
//	  params   = paramLen bytes
//	  payload  = dataLen bytes
//
// Required stage names:
//
//	code_table, runs
//
// Optional stage names:
//
//	checksum, stats
//
// Unknown stages are skipped via dataLen framing.
type wireStageHeader struct {
	name     string
	paramLen uint16
	dataLen  uint32
}

// Artifact is the output of compression: the run-length pairs of the Huffman
// bit stream, the code table needed to decode them and size statistics.
type Artifact struct {
	Runs  []rle.Run
	Table huffman.CodeTable
	Stats Stats

	// Internal metadata, carried through binary archives.
	codec       Codec
	checksum    uint64
	hasChecksum bool
}

// Payload returns the runs in the textual count:bit wire format.
func (a *Artifact) Payload() string {
	return rle.Format(a.Runs)
}

// Checksum returns the xxhash64 of the original text, if recorded.
func (a *Artifact) Checksum() (uint64, bool) {
	return a.checksum, a.hasChecksum
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	if n != len(b) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

func writeStage(w io.Writer, name string, params []byte, payload []byte) (int64, error) {
	if len(name) == 0 || len(name) > 255 {
		return 0, fmt.Errorf("invalid stage name length: %d", len(name))
	}
	if len(params) > int(^uint16(0)) {
		return 0, fmt.Errorf("stage params too large for %q: %d", name, len(params))
	}
	if len(payload) > maxStagePayloadBytes {
		return 0, fmt.Errorf("stage payload too large for %q: %d", name, len(payload))
	}

	header := make([]byte, 0, 7+len(name))
	header = append(header, uint8(len(name)))
	header = binary.LittleEndian.AppendUint16(header, uint16(len(params)))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(payload)))
	header = append(header, name...)

	var total int64
	for _, part := range [][]byte{header, params, payload} {
		n, err := writeBytes(w, part)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readStageHeader(r io.Reader) (wireStageHeader, int64, error) {
	var total int64
	var fixed [7]byte
	n, err := io.ReadFull(r, fixed[:])
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}
	nameLen := fixed[0]
	if nameLen == 0 {
		return wireStageHeader{}, total, fmt.Errorf("stage name length must be > 0")
	}
	paramLen := binary.LittleEndian.Uint16(fixed[1:3])
	dataLen := binary.LittleEndian.Uint32(fixed[3:7])
	if dataLen > uint32(maxStagePayloadBytes) {
		return wireStageHeader{}, total, fmt.Errorf("stage payload too large: %d", dataLen)
	}

	nameBytes := make([]byte, int(nameLen))
	n, err = io.ReadFull(r, nameBytes)
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	return wireStageHeader{
		name:     string(nameBytes),
		paramLen: paramLen,
		dataLen:  dataLen,
	}, total, nil
}

// readStagePayload reads exactly n bytes without allocating n up front, so a
// corrupt length cannot force a large allocation.
func readStagePayload(r io.Reader, n uint32) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return payload, err
	}
	if len(payload) != int(n) {
		return payload, io.ErrUnexpectedEOF
	}
	return payload, nil
}

func encodeCodeTableStage(table huffman.CodeTable) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(table))); err != nil {
		return nil, err
	}
	w := bitio.NewWriter(&buf)
	for _, s := range table.Symbols() {
		code := table[s]
		if len(code) > maxCodeBits {
			return nil, fmt.Errorf("code for symbol %q too long: %d bits", s, len(code))
		}
		if err := w.WriteByte(s); err != nil {
			return nil, err
		}
		if err := w.WriteByte(byte(len(code))); err != nil {
			return nil, err
		}
		for i := 0; i < len(code); i++ {
			if err := w.WriteBool(code[i] == '1'); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCodeTableStage(dst *Artifact, params []byte, payload []byte) error {
	if len(params) != 0 {
		return fmt.Errorf("invalid code_table params: %v", params)
	}
	if len(payload) < 2 {
		return fmt.Errorf("code_table payload too short: %d", len(payload))
	}
	count := int(binary.LittleEndian.Uint16(payload[:2]))
	if count > 256 {
		return fmt.Errorf("code_table entry count out of range: %d", count)
	}

	table := make(huffman.CodeTable, count)
	r := bitio.NewReader(bytes.NewReader(payload[2:]))
	code := make([]byte, 0, 32)
	for i := 0; i < count; i++ {
		s, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("code_table entry %d symbol: %w", i, err)
		}
		n, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("code_table entry %d length: %w", i, err)
		}
		if n == 0 {
			return fmt.Errorf("code_table entry %d has empty code", i)
		}
		code = code[:0]
		for j := 0; j < int(n); j++ {
			one, err := r.ReadBool()
			if err != nil {
				return fmt.Errorf("code_table entry %d bit %d: %w", i, j, err)
			}
			if one {
				code = append(code, '1')
			} else {
				code = append(code, '0')
			}
		}
		if _, dup := table[s]; dup {
			return fmt.Errorf("code_table duplicate symbol %q at entry %d", s, i)
		}
		table[s] = string(code)
	}
	if err := table.Validate(); err != nil {
		return err
	}
	dst.Table = table
	return nil
}

func encodeRunsStage(a *Artifact) ([]byte, uint8, error) {
	runs, err := rle.Canonical(a.Runs)
	if err != nil {
		return nil, 0, err
	}
	raw, err := rle.MarshalPacked(runs)
	if err != nil {
		return nil, 0, err
	}

	type candidate struct {
		payload []byte
		param   uint8
	}
	var candidates []candidate

	codec := a.codec
	if codec == CodecAuto || codec == CodecRaw {
		candidates = append(candidates, candidate{payload: raw, param: stageRunsParamRaw})
	}
	if codec == CodecAuto || codec == CodecFlate {
		flatePayload, err := encodeFlatePayload(raw)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, candidate{payload: flatePayload, param: stageRunsParamFlate})
	}
	if codec == CodecAuto || codec == CodecZstd {
		zstdPayload, err := encodeZstdPayload(raw)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, candidate{payload: zstdPayload, param: stageRunsParamZstd})
	}
	if len(candidates) == 0 {
		return nil, 0, fmt.Errorf("unsupported payload codec: %d", codec)
	}

	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if len(candidate.payload) < len(best.payload) {
			best = candidate
		}
	}
	return best.payload, best.param, nil
}

func decodeRunsStage(dst *Artifact, params []byte, payload []byte) error {
	if len(params) != 1 {
		return fmt.Errorf("invalid runs params: %v", params)
	}

	var (
		raw []byte
		err error
	)
	switch params[0] {
	case stageRunsParamRaw:
		raw = payload
		dst.codec = CodecRaw
	case stageRunsParamFlate:
		raw, err = decodeFlatePayload(payload)
		dst.codec = CodecFlate
	case stageRunsParamZstd:
		raw, err = decodeZstdPayload(payload)
		dst.codec = CodecZstd
	default:
		return fmt.Errorf("unsupported runs param: %d", params[0])
	}
	if err != nil {
		return err
	}

	runs, err := rle.UnmarshalPacked(raw)
	if err != nil {
		return err
	}
	dst.Runs = runs
	return nil
}

func encodeFlatePayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFlatePayload(payload []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()

	limited := io.LimitReader(r, maxStagePayloadBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxStagePayloadBytes {
		return nil, fmt.Errorf("flate payload expands beyond limit")
	}
	return raw, nil
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxStagePayloadBytes))
	})
)

func encodeZstdPayload(raw []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

func decodeZstdPayload(payload []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxStagePayloadBytes {
		return nil, fmt.Errorf("zstd payload expands beyond limit")
	}
	return raw, nil
}

// encodeStatsStage stores the three sizes. Elapsed time is not stored so that
// archives of the same text are byte-identical.
func encodeStatsStage(s Stats) []byte {
	payload := make([]byte, 0, statsStageBytes)
	payload = binary.LittleEndian.AppendUint64(payload, uint64(s.OriginalBits))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(s.HuffmanBits))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(s.CompressedBits))
	return payload
}

func decodeStatsStage(dst *Artifact, params []byte, payload []byte) error {
	if len(params) != 0 {
		return fmt.Errorf("invalid stats params: %v", params)
	}
	if len(payload) != statsStageBytes {
		return fmt.Errorf("stats payload size: got %d want %d", len(payload), statsStageBytes)
	}
	var v [3]uint64
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(payload[i*8:])
		if v[i] > 1<<62 {
			return fmt.Errorf("stats field %d out of range: %d", i, v[i])
		}
	}
	original := int(v[0])
	if original%bitsPerSymbol != 0 {
		return fmt.Errorf("original size %d is not a whole number of symbols", original)
	}
	dst.Stats = newStats(original/bitsPerSymbol, int(v[1]), int(v[2]), 0)
	return nil
}

func decodeChecksumStage(dst *Artifact, params []byte, payload []byte) error {
	if len(params) != 0 {
		return fmt.Errorf("invalid checksum params: %v", params)
	}
	if len(payload) != 8 {
		return fmt.Errorf("checksum payload size: got %d want 8", len(payload))
	}
	dst.checksum = binary.LittleEndian.Uint64(payload)
	dst.hasChecksum = true
	return nil
}

func validateArtifact(a *Artifact) error {
	if err := a.Table.Validate(); err != nil {
		return err
	}
	for s, code := range a.Table {
		if len(code) > maxCodeBits {
			return fmt.Errorf("code for symbol %q too long: %d bits", s, len(code))
		}
	}
	if len(a.Runs) > 0 && len(a.Table) == 0 {
		return fmt.Errorf("%d runs without a code table: %w", len(a.Runs), huffman.ErrEmptyTree)
	}
	if _, err := rle.Canonical(a.Runs); err != nil {
		return err
	}
	return nil
}

// WriteTo serializes the Artifact to an io.Writer.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	if err := validateArtifact(a); err != nil {
		return 0, fmt.Errorf("invalid artifact: %w", err)
	}

	tablePayload, err := encodeCodeTableStage(a.Table)
	if err != nil {
		return 0, err
	}
	runsPayload, runsParam, err := encodeRunsStage(a)
	if err != nil {
		return 0, err
	}

	type stage struct {
		name    string
		params  []byte
		payload []byte
	}
	stages := []stage{
		{name: stageCodeTable, payload: tablePayload},
		{name: stageRuns, params: []byte{runsParam}, payload: runsPayload},
		{name: stageStats, payload: encodeStatsStage(a.Stats)},
	}
	if a.hasChecksum {
		stages = append(stages, stage{
			name:    stageChecksum,
			payload: binary.LittleEndian.AppendUint64(nil, a.checksum),
		})
	}

	header := make([]byte, 0, 8)
	header = append(header, archiveMagic...)
	header = binary.LittleEndian.AppendUint16(header, archiveVersion)
	header = binary.LittleEndian.AppendUint16(header, uint16(len(stages)))

	total, err := writeBytes(w, header)
	if err != nil {
		return total, err
	}
	for _, s := range stages {
		n, err := writeStage(w, s.name, s.params, s.payload)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadFrom deserializes an Artifact from an io.Reader. On error the receiver
// is left unchanged.
func (a *Artifact) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	var magic [4]byte
	magicOffset := total
	n, err := io.ReadFull(r, magic[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("read archive magic at offset %d: %w", magicOffset, err)
	}
	if string(magic[:]) != archiveMagic {
		return total, fmt.Errorf("invalid archive magic at offset %d: %q", magicOffset, string(magic[:]))
	}

	var version uint16
	versionOffset := total
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return total, fmt.Errorf("read archive version at offset %d: %w", versionOffset, err)
	}
	total += 2
	if version != archiveVersion {
		return total, fmt.Errorf("unsupported archive version at offset %d: %d", versionOffset, version)
	}

	var stageCount uint16
	stageCountOffset := total
	if err := binary.Read(r, binary.LittleEndian, &stageCount); err != nil {
		return total, fmt.Errorf("read stage count at offset %d: %w", stageCountOffset, err)
	}
	total += 2
	if stageCount == 0 || stageCount > maxArchiveStages {
		return total, fmt.Errorf("invalid stage count at offset %d: %d", stageCountOffset, stageCount)
	}

	tmp := Artifact{}
	seenStages := make(map[string]bool, stageCount)
	decoders := map[string]func(*Artifact, []byte, []byte) error{
		stageCodeTable: decodeCodeTableStage,
		stageRuns:      decodeRunsStage,
		stageStats:     decodeStatsStage,
		stageChecksum:  decodeChecksumStage,
	}

	for i := 0; i < int(stageCount); i++ {
		headerOffset := total
		header, n, err := readStageHeader(r)
		total += n
		if err != nil {
			return total, fmt.Errorf("read stage header at offset %d (stage index %d): %w", headerOffset, i, err)
		}
		if seenStages[header.name] {
			return total, fmt.Errorf("duplicate stage %q at stage index %d", header.name, i)
		}

		params := make([]byte, int(header.paramLen))
		paramsOffset := total
		nParams, err := io.ReadFull(r, params)
		total += int64(nParams)
		if err != nil {
			return total, fmt.Errorf("read stage %q params at offset %d (stage index %d): %w", header.name, paramsOffset, i, err)
		}

		decode, known := decoders[header.name]
		if !known {
			skipOffset := total
			skipped, err := io.CopyN(io.Discard, r, int64(header.dataLen))
			total += skipped
			if err != nil {
				return total, fmt.Errorf("skip unknown stage %q at offset %d (stage index %d): %w", header.name, skipOffset, i, err)
			}
			continue
		}

		payloadOffset := total
		payload, err := readStagePayload(r, header.dataLen)
		total += int64(len(payload))
		if err != nil {
			return total, fmt.Errorf("read stage %q payload at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
		}
		if err := decode(&tmp, params, payload); err != nil {
			return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
		}
		seenStages[header.name] = true
	}

	for _, stageName := range []string{stageCodeTable, stageRuns} {
		if !seenStages[stageName] {
			return total, fmt.Errorf("missing required stage %q", stageName)
		}
	}
	if !seenStages[stageStats] {
		bits, err := rle.Len(tmp.Runs)
		if err != nil {
			return total, fmt.Errorf("invalid archive structure: %w", err)
		}
		tmp.Stats = newStats(0, bits, rle.Cost(tmp.Runs), 0)
	}
	if err := validateArtifact(&tmp); err != nil {
		return total, fmt.Errorf("invalid archive structure: %w", err)
	}

	*a = tmp
	return total, nil
}
