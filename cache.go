package huffrle

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/seiflotfy/huffrle/huffman"
)

// treeCache keeps recently rebuilt decoding trees keyed by a hash of their
// code table. Trees are immutable, so cached entries are shared freely
// between goroutines.
type treeCache struct {
	entries *lru.Cache[uint64, cachedTree]
}

type cachedTree struct {
	key  string // canonical table encoding, guards against hash collisions
	root *huffman.Node
}

// newTreeCache returns nil when size is not positive.
func newTreeCache(size int) *treeCache {
	if size <= 0 {
		return nil
	}
	entries, err := lru.New[uint64, cachedTree](size)
	if err != nil {
		return nil
	}
	return &treeCache{entries: entries}
}

// tableKey serializes table as symbol, code length and code for every entry
// in symbol order.
func tableKey(table huffman.CodeTable) []byte {
	key := make([]byte, 0, len(table)*8)
	for _, s := range table.Symbols() {
		code := table[s]
		key = append(key, s, byte(len(code)))
		key = append(key, code...)
	}
	return key
}

// tree returns the decoding tree for table, rebuilding it on a miss.
func (c *treeCache) tree(table huffman.CodeTable) (*huffman.Node, error) {
	if c == nil {
		return huffman.Rebuild(table)
	}

	key := tableKey(table)
	hash := xxhash.Sum64(key)
	if hit, ok := c.entries.Get(hash); ok && hit.key == string(key) {
		return hit.root, nil
	}

	root, err := huffman.Rebuild(table)
	if err != nil {
		return nil, err
	}
	c.entries.Add(hash, cachedTree{key: string(key), root: root})
	return root, nil
}

// Len returns the number of cached trees.
func (c *treeCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
