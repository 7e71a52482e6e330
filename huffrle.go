// Package huffrle is a two-stage lossless text compressor: a Huffman entropy
// coder followed by a run-length coder over the resulting bit stream.
//
// Compress produces an Artifact holding the run-length pairs, the code table
// needed to rebuild the Huffman tree, and size statistics. Decompress reverses
// the pipeline. Artifacts can be stored as two text files (payload and code
// table) or as a single binary archive via WriteTo and ReadFrom.
package huffrle

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/seiflotfy/huffrle/huffman"
	"github.com/seiflotfy/huffrle/rle"
)

const (
	bitsPerSymbol        = 8
	defaultTreeCacheSize = 128
)

// Codec selects how the run stage of a binary archive is stored.
type Codec uint8

const (
	CodecAuto  Codec = iota // smallest of raw, flate and zstd
	CodecRaw                // packed runs, no further compression
	CodecFlate              // flate(packed runs)
	CodecZstd               // zstd(packed runs)
)

func (c Codec) String() string {
	switch c {
	case CodecAuto:
		return "auto"
	case CodecRaw:
		return "raw"
	case CodecFlate:
		return "flate"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCodec maps a codec name to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "auto":
		return CodecAuto, nil
	case "raw":
		return CodecRaw, nil
	case "flate":
		return CodecFlate, nil
	case "zstd":
		return CodecZstd, nil
	}
	return CodecAuto, errors.New("unknown codec: " + name)
}

// Config holds configuration for encoders and decoders.
type Config struct {
	PayloadCodec    Codec // Run stage codec for binary archives (0 = auto)
	TreeCacheSize   int   // Decoder tree cache entries (0 = default, <0 = disabled)
	Workers         int   // Batch workers (0 = GOMAXPROCS)
	DisableChecksum bool  // Do not record a checksum of the input
}

// Option is a functional option for configuring encoders and decoders.
type Option func(*Config)

// WithPayloadCodec sets the codec used for the run stage of binary archives.
// Unknown values fall back to CodecAuto.
func WithPayloadCodec(c Codec) Option {
	return func(cfg *Config) {
		cfg.PayloadCodec = c
	}
}

// WithTreeCacheSize sets how many rebuilt trees a Decoder keeps. A negative
// size disables the cache.
func WithTreeCacheSize(n int) Option {
	return func(cfg *Config) {
		cfg.TreeCacheSize = n
	}
}

// WithWorkers sets the number of goroutines used by CompressAll and
// DecompressAll.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		cfg.Workers = n
	}
}

// WithChecksum controls whether artifacts carry a checksum of the input.
// Checksums are on by default.
func WithChecksum(enabled bool) Option {
	return func(cfg *Config) {
		cfg.DisableChecksum = !enabled
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func resolveCodec(cfg Config) Codec {
	switch cfg.PayloadCodec {
	case CodecRaw, CodecFlate, CodecZstd:
		return cfg.PayloadCodec
	default:
		return CodecAuto
	}
}

func resolveTreeCacheSize(cfg Config) int {
	switch {
	case cfg.TreeCacheSize == 0:
		return defaultTreeCacheSize
	case cfg.TreeCacheSize < 0:
		return 0
	default:
		return cfg.TreeCacheSize
	}
}

func resolveWorkers(cfg Config) int {
	if cfg.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Workers
}

var (
	// ErrUnknownSymbol indicates the input contains a symbol absent from the code table.
	ErrUnknownSymbol = huffman.ErrUnknownSymbol
	// ErrInvalidBit indicates a bit stream holds something other than '0' or '1'.
	ErrInvalidBit = huffman.ErrInvalidBit
	// ErrMalformedStream indicates a bit stream does not match the code table.
	ErrMalformedStream = huffman.ErrMalformedStream
	// ErrEmptyTree indicates a non-empty payload without a code table.
	ErrEmptyTree = huffman.ErrEmptyTree
	// ErrMalformedTable indicates a code table that is not a prefix code.
	ErrMalformedTable = huffman.ErrMalformedTable
	// ErrFormat indicates a malformed run-length payload.
	ErrFormat = rle.ErrFormat
	// ErrChecksumMismatch indicates decompressed text differs from what was compressed.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUntrainedModel indicates Encode was called before a model was trained.
	ErrUntrainedModel = errors.New("model is not trained")
)

// Stats describes the sizes achieved by one compression.
type Stats struct {
	OriginalBits   int           // len(text) * 8
	HuffmanBits    int           // length of the Huffman bit stream
	CompressedBits int           // estimated cost of the run-length pairs
	HuffmanRatio   float64       // space saved by Huffman coding alone, in percent
	Ratio          float64       // space saved by the whole pipeline, in percent
	Elapsed        time.Duration // wall time spent compressing
}

func newStats(symbols, huffmanBits, compressedBits int, elapsed time.Duration) Stats {
	original := symbols * bitsPerSymbol
	return Stats{
		OriginalBits:   original,
		HuffmanBits:    huffmanBits,
		CompressedBits: compressedBits,
		HuffmanRatio:   ratio(original, huffmanBits),
		Ratio:          ratio(original, compressedBits),
		Elapsed:        elapsed,
	}
}

// ratio returns the space saved in percent, or 0 when original is 0.
func ratio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}

// Encoder compresses text.
type Encoder struct {
	config Config
}

// NewEncoder creates a new encoder with the given options.
func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{config: newConfig(opts)}
}

// Compress builds a Huffman code for text, encodes it and run-length codes
// the bits. Empty text yields an artifact with no runs, an empty code table
// and zero statistics.
func (e *Encoder) Compress(text string) (*Artifact, error) {
	start := time.Now()
	if len(text) == 0 {
		return e.emptyArtifact(), nil
	}
	table := huffman.Codes(huffman.Build(huffman.Count(text)))
	return e.encode(text, table, start)
}

func (e *Encoder) emptyArtifact() *Artifact {
	a := &Artifact{
		Runs:  []rle.Run{},
		Table: huffman.CodeTable{},
		codec: resolveCodec(e.config),
	}
	e.stamp(a, "")
	return a
}

// encode runs both coding stages of text with a fixed table.
func (e *Encoder) encode(text string, table huffman.CodeTable, start time.Time) (*Artifact, error) {
	bits, err := huffman.Encode(text, table)
	if err != nil {
		return nil, err
	}
	runs, err := rle.Encode(bits)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Runs:  runs,
		Table: table,
		codec: resolveCodec(e.config),
	}
	e.stamp(a, text)
	a.Stats = newStats(len(text), len(bits), rle.Cost(runs), time.Since(start))
	return a, nil
}

func (e *Encoder) stamp(a *Artifact, text string) {
	if e.config.DisableChecksum {
		return
	}
	a.checksum = xxhash.Sum64String(text)
	a.hasChecksum = true
}

var (
	defaultEncoder = NewEncoder()
	defaultDecoder = sync.OnceValue(func() *Decoder { return NewDecoder() })
)

// Compress compresses text with default options.
func Compress(text string) (*Artifact, error) {
	return defaultEncoder.Compress(text)
}

// Decompress restores the text of a with a shared default Decoder.
func Decompress(a *Artifact) (string, error) {
	return defaultDecoder().Decompress(a)
}
