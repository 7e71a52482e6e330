package huffrle

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/seiflotfy/huffrle/huffman"
	"github.com/seiflotfy/huffrle/rle"
)

// Decoder restores text from artifacts. It caches the trees it rebuilds from
// code tables and is safe for concurrent use.
type Decoder struct {
	config Config
	trees  *treeCache
}

// NewDecoder creates a decoder with the given options.
func NewDecoder(opts ...Option) *Decoder {
	cfg := newConfig(opts)
	return &Decoder{
		config: cfg,
		trees:  newTreeCache(resolveTreeCacheSize(cfg)),
	}
}

// Decompress rebuilds the Huffman tree from the artifact's code table,
// expands the runs to bits and decodes them. Any failure aborts the call and
// no text is returned.
func (d *Decoder) Decompress(a *Artifact) (string, error) {
	if a == nil {
		return "", fmt.Errorf("nil artifact: %w", huffman.ErrEmptyTree)
	}

	var text string
	if len(a.Runs) > 0 || len(a.Table) > 0 {
		root, err := d.trees.tree(a.Table)
		if err != nil {
			return "", fmt.Errorf("rebuild tree: %w", err)
		}
		bits, err := rle.Decode(a.Runs)
		if err != nil {
			return "", fmt.Errorf("decode runs: %w", err)
		}
		text, err = huffman.Decode(bits, root)
		if err != nil {
			return "", fmt.Errorf("decode bits: %w", err)
		}
	}

	if a.hasChecksum {
		if got := xxhash.Sum64String(text); got != a.checksum {
			return "", fmt.Errorf("%w: got %016x want %016x", ErrChecksumMismatch, got, a.checksum)
		}
	}
	return text, nil
}

// CachedTrees reports how many decoding trees the decoder currently holds.
func (d *Decoder) CachedTrees() int {
	return d.trees.Len()
}
