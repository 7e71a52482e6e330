package huffrle

import (
	"bytes"
	"errors"
	"maps"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/seiflotfy/huffrle/huffman"
	"github.com/seiflotfy/huffrle/rle"
)

// ============================================================================
// Helper Functions
// ============================================================================

const (
	pangram      = "the quick brown fox jumps over the lazy dog and then the quick brown fox sleeps in the warm afternoon sun"
	wideAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!\"#$%&'()*+"
)

func mustCompress(t testing.TB, enc *Encoder, text string) *Artifact {
	t.Helper()
	a, err := enc.Compress(text)
	if err != nil {
		t.Fatalf("Compress(%q) failed: %v", text, err)
	}
	return a
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// verifyArtifactRoundTrip decodes a directly, through the binary archive and
// through the textual payload and code table files.
func verifyArtifactRoundTrip(t *testing.T, a *Artifact, want string) {
	t.Helper()

	got, err := NewDecoder().Decompress(a)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if got != want {
		t.Fatalf("Decompress mismatch: got %q want %q", got, want)
	}

	var blob bytes.Buffer
	n, err := a.WriteTo(&blob)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if int(n) != blob.Len() {
		t.Fatalf("WriteTo reported %d bytes, wrote %d", n, blob.Len())
	}

	var loaded Artifact
	m, err := loaded.ReadFrom(bytes.NewReader(blob.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if m != n {
		t.Fatalf("ReadFrom consumed %d bytes, archive has %d", m, n)
	}
	got, err = Decompress(&loaded)
	if err != nil {
		t.Fatalf("Decompress after ReadFrom failed: %v", err)
	}
	if got != want {
		t.Fatalf("archive round trip mismatch: got %q want %q", got, want)
	}

	var payload, table bytes.Buffer
	if _, err := a.WritePayload(&payload); err != nil {
		t.Fatalf("WritePayload failed: %v", err)
	}
	if _, err := a.WriteTable(&table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	fromFiles, err := LoadArtifact(&payload, &table)
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	got, err = Decompress(fromFiles)
	if err != nil {
		t.Fatalf("Decompress after LoadArtifact failed: %v", err)
	}
	if got != want {
		t.Fatalf("file round trip mismatch: got %q want %q", got, want)
	}
}

// ============================================================================
// Basic Compression Tests
// ============================================================================

func TestCompressHello(t *testing.T) {
	a := mustCompress(t, NewEncoder(), "hello")

	if got := a.Payload(); got != "1:0,1:1,2:0,5:1,1:0" {
		t.Fatalf("payload: got %q", got)
	}
	want := huffman.CodeTable{'e': "00", 'h': "01", 'l': "11", 'o': "10"}
	if !a.Table.Equal(want) {
		t.Fatalf("table: got %v want %v", a.Table, want)
	}
	verifyArtifactRoundTrip(t, a, "hello")
}

func TestCompressEmpty(t *testing.T) {
	a := mustCompress(t, NewEncoder(), "")

	if a.Runs == nil || len(a.Runs) != 0 {
		t.Fatalf("expected empty non-nil runs, got %v", a.Runs)
	}
	if len(a.Table) != 0 {
		t.Fatalf("expected empty table, got %v", a.Table)
	}
	if a.Payload() != "" {
		t.Fatalf("expected empty payload, got %q", a.Payload())
	}
	s := a.Stats
	if s.OriginalBits != 0 || s.HuffmanBits != 0 || s.CompressedBits != 0 || s.Ratio != 0 || s.HuffmanRatio != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
	verifyArtifactRoundTrip(t, a, "")
}

func TestCompressSingleSymbol(t *testing.T) {
	a := mustCompress(t, NewEncoder(), "aaaaaa")

	if len(a.Table) != 1 || a.Table['a'] != "0" {
		t.Fatalf("expected single-symbol table {a:0}, got %v", a.Table)
	}
	if len(a.Runs) != 1 || a.Runs[0] != (rle.Run{Count: 6, Bit: '0'}) {
		t.Fatalf("expected a single run of six zeros, got %v", a.Runs)
	}
	verifyArtifactRoundTrip(t, a, "aaaaaa")
}

func TestCompressRoundTripVariety(t *testing.T) {
	texts := []string{
		"a",
		"ab",
		"abracadabra",
		"mississippi",
		pangram,
		"tab\there\nnewline\r\n",
		"null\x00byte\xff\x80",
		"hello 世界 🚀",
		strings.Repeat("abc", 1000),
		wideAlphabet,
	}
	for _, text := range texts {
		a := mustCompress(t, NewEncoder(), text)
		verifyArtifactRoundTrip(t, a, text)
	}
}

func TestCompressRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		buf := make([]byte, rng.Intn(512))
		alphabet := 1 + rng.Intn(256)
		for j := range buf {
			buf[j] = byte(rng.Intn(alphabet))
		}
		text := string(buf)
		a := mustCompress(t, NewEncoder(), text)
		got, err := Decompress(a)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if got != text {
			t.Fatalf("iteration %d: round trip mismatch", i)
		}
	}
}

func TestCompressDeterministic(t *testing.T) {
	for _, text := range []string{"", "hello", pangram, strings.Repeat("ab", 500)} {
		var first, second bytes.Buffer
		if _, err := mustCompress(t, NewEncoder(), text).WriteTo(&first); err != nil {
			t.Fatalf("WriteTo failed: %v", err)
		}
		if _, err := mustCompress(t, NewEncoder(), text).WriteTo(&second); err != nil {
			t.Fatalf("WriteTo failed: %v", err)
		}
		if !bytes.Equal(first.Bytes(), second.Bytes()) {
			t.Fatalf("archives of %q differ", text)
		}
	}
}

// ============================================================================
// Statistics
// ============================================================================

func TestStats(t *testing.T) {
	cases := []struct {
		text         string
		original     int
		huffman      int
		compressed   int
		ratio        float64
		huffmanRatio float64
	}{
		{text: "hello", original: 40, huffman: 10, compressed: 13, ratio: 67.5, huffmanRatio: 75},
		{text: "aaaaaa", original: 48, huffman: 6, compressed: 4, ratio: 100 * 44.0 / 48.0, huffmanRatio: 87.5},
		{text: "abcd", original: 32, huffman: 8, compressed: 11, ratio: 100 * 21.0 / 32.0, huffmanRatio: 75},
		{text: "abracadabra", original: 88, huffman: 23, compressed: 35, ratio: 100 * 53.0 / 88.0, huffmanRatio: 100 * 65.0 / 88.0},
		{text: "mississippi", original: 88, huffman: 21, compressed: 30, ratio: 100 * 58.0 / 88.0, huffmanRatio: 100 * 67.0 / 88.0},
		{text: pangram, original: 840, huffman: 451, compressed: 617, ratio: 100 * 223.0 / 840.0, huffmanRatio: 100 * 389.0 / 840.0},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			s := mustCompress(t, NewEncoder(), tc.text).Stats
			if s.OriginalBits != tc.original {
				t.Errorf("OriginalBits: got %d want %d", s.OriginalBits, tc.original)
			}
			if s.HuffmanBits != tc.huffman {
				t.Errorf("HuffmanBits: got %d want %d", s.HuffmanBits, tc.huffman)
			}
			if s.CompressedBits != tc.compressed {
				t.Errorf("CompressedBits: got %d want %d", s.CompressedBits, tc.compressed)
			}
			if !approxEqual(s.Ratio, tc.ratio) {
				t.Errorf("Ratio: got %v want %v", s.Ratio, tc.ratio)
			}
			if !approxEqual(s.HuffmanRatio, tc.huffmanRatio) {
				t.Errorf("HuffmanRatio: got %v want %v", s.HuffmanRatio, tc.huffmanRatio)
			}
			if s.Elapsed < 0 {
				t.Errorf("Elapsed is negative: %v", s.Elapsed)
			}
		})
	}
}

func TestCompressedNotSmallerForWideShortInput(t *testing.T) {
	// Many distinct symbols with one occurrence each give near-uniform codes
	// and short alternating runs, so the run cost exceeds eight bits per
	// symbol. Savings are not guaranteed for short inputs.
	s := mustCompress(t, NewEncoder(), wideAlphabet).Stats
	if s.OriginalBits != 584 || s.CompressedBits != 586 {
		t.Fatalf("got original %d compressed %d, want 584 and 586", s.OriginalBits, s.CompressedBits)
	}
	if s.Ratio >= 0 {
		t.Fatalf("expected a negative ratio, got %v", s.Ratio)
	}
}

func TestCompressedSmallerForProse(t *testing.T) {
	text := strings.Repeat(pangram+". ", 20)
	s := mustCompress(t, NewEncoder(), text).Stats
	if s.CompressedBits > s.OriginalBits {
		t.Fatalf("compressed %d bits exceeds original %d", s.CompressedBits, s.OriginalBits)
	}
}

func TestRatioGuardsZeroOriginal(t *testing.T) {
	if got := ratio(0, 10); got != 0 {
		t.Fatalf("ratio(0, 10): got %v want 0", got)
	}
	if got := ratio(8, 4); got != 50 {
		t.Fatalf("ratio(8, 4): got %v want 50", got)
	}
}

// ============================================================================
// Decompression Failures
// ============================================================================

func TestDecompressInvalidBitInStream(t *testing.T) {
	a := mustCompress(t, NewEncoder(), "hello")
	root, err := huffman.Rebuild(a.Table)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	text, err := huffman.Decode("01x0", root)
	if !errors.Is(err, ErrInvalidBit) {
		t.Fatalf("expected ErrInvalidBit, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected no output, got %q", text)
	}
}

func TestDecompressFailures(t *testing.T) {
	base := mustCompress(t, NewEncoder(), "hello")
	clone := func() *Artifact {
		c := *base
		c.Runs = append([]rle.Run(nil), base.Runs...)
		c.Table = maps.Clone(base.Table)
		return &c
	}

	cases := []struct {
		name   string
		mutate func(a *Artifact)
		want   error
	}{
		{name: "bad run bit", mutate: func(a *Artifact) { a.Runs[1].Bit = 'x' }, want: ErrFormat},
		{name: "zero run count", mutate: func(a *Artifact) { a.Runs[0].Count = 0 }, want: ErrFormat},
		{name: "missing table", mutate: func(a *Artifact) { a.Table = huffman.CodeTable{} }, want: ErrEmptyTree},
		{name: "truncated runs", mutate: func(a *Artifact) { a.Runs = a.Runs[:len(a.Runs)-1] }, want: ErrMalformedStream},
		{name: "not prefix free", mutate: func(a *Artifact) { a.Table['e'] = "0" }, want: ErrMalformedTable},
		{name: "swapped codes", mutate: func(a *Artifact) {
			a.Table['e'], a.Table['h'] = a.Table['h'], a.Table['e']
		}, want: ErrChecksumMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := clone()
			tc.mutate(a)
			text, err := NewDecoder().Decompress(a)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if text != "" {
				t.Fatalf("expected no output, got %q", text)
			}
		})
	}

	if _, err := Decompress(nil); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("Decompress(nil): expected ErrEmptyTree, got %v", err)
	}
}

func TestDecompressWithoutChecksum(t *testing.T) {
	a := mustCompress(t, NewEncoder(WithChecksum(false)), "hello")
	if _, ok := a.Checksum(); ok {
		t.Fatalf("expected no checksum")
	}
	a.Table['e'], a.Table['h'] = a.Table['h'], a.Table['e']

	got, err := Decompress(a)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if got != "ehllo" {
		t.Fatalf("got %q want %q", got, "ehllo")
	}
}

// ============================================================================
// Options
// ============================================================================

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{CodecAuto, CodecRaw, CodecFlate, CodecZstd} {
		got, err := ParseCodec(c.String())
		if err != nil {
			t.Fatalf("ParseCodec(%q) failed: %v", c, err)
		}
		if got != c {
			t.Fatalf("ParseCodec(%q): got %v", c, got)
		}
	}
	if _, err := ParseCodec("lz4"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
	if got := Codec(42).String(); got != "unknown" {
		t.Fatalf("Codec(42).String(): got %q", got)
	}
}

func TestResolveOptions(t *testing.T) {
	if got := resolveCodec(newConfig([]Option{WithPayloadCodec(Codec(9))})); got != CodecAuto {
		t.Fatalf("unknown codec should resolve to auto, got %v", got)
	}
	if got := resolveCodec(newConfig([]Option{WithPayloadCodec(CodecZstd)})); got != CodecZstd {
		t.Fatalf("got %v want zstd", got)
	}

	sizes := []struct {
		in, want int
	}{
		{0, defaultTreeCacheSize},
		{-1, 0},
		{7, 7},
	}
	for _, tc := range sizes {
		if got := resolveTreeCacheSize(newConfig([]Option{WithTreeCacheSize(tc.in)})); got != tc.want {
			t.Fatalf("resolveTreeCacheSize(%d): got %d want %d", tc.in, got, tc.want)
		}
	}

	if got := resolveWorkers(newConfig([]Option{WithWorkers(3)})); got != 3 {
		t.Fatalf("resolveWorkers(3): got %d", got)
	}
	if got := resolveWorkers(newConfig(nil)); got < 1 {
		t.Fatalf("resolveWorkers default: got %d", got)
	}
}

// ============================================================================
// Fuzz and Benchmarks
// ============================================================================

const maxFuzzInputBytes = 8 * 1024

func FuzzCompressRoundTrip(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Add([]byte("aaaaaa"))
	f.Add([]byte("null\x00byte\tand\xfftail"))
	f.Add([]byte(wideAlphabet))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > maxFuzzInputBytes {
			t.Skip()
		}
		text := string(data)
		a := mustCompress(t, NewEncoder(), text)
		if a.Stats.OriginalBits != len(text)*8 {
			t.Fatalf("OriginalBits: got %d want %d", a.Stats.OriginalBits, len(text)*8)
		}
		verifyArtifactRoundTrip(t, a, text)
	})
}

func BenchmarkCompress(b *testing.B) {
	text := strings.Repeat(pangram+". ", 200)
	enc := NewEncoder()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.Compress(text); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	text := strings.Repeat(pangram+". ", 200)
	a := mustCompress(b, NewEncoder(), text)
	dec := NewDecoder()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dec.Decompress(a); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteTo(b *testing.B) {
	a := mustCompress(b, NewEncoder(), strings.Repeat(pangram+". ", 200))
	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if _, err := a.WriteTo(&buf); err != nil {
			b.Fatal(err)
		}
	}
}
