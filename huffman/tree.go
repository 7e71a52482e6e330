package huffman

import (
	"container/heap"
	"slices"
)

// Node is a node of a Huffman tree. A leaf carries a symbol; an internal node
// carries the summed frequency of its two children. Trees are read-only once
// built and may be shared between goroutines.
type Node struct {
	symbol Symbol
	freq   int
	leaf   bool
	left   *Node
	right  *Node
}

// IsLeaf reports whether n holds a symbol.
func (n *Node) IsLeaf() bool { return n.leaf }

// Symbol returns the symbol of a leaf. It is zero for internal nodes.
func (n *Node) Symbol() Symbol { return n.symbol }

// Freq returns the frequency of the node. Trees rebuilt from a code table
// carry no frequencies.
func (n *Node) Freq() int { return n.freq }

// Left returns the child reached by a '0' bit, or nil.
func (n *Node) Left() *Node { return n.left }

// Right returns the child reached by a '1' bit, or nil.
func (n *Node) Right() *Node { return n.right }

// Walk visits the tree in pre-order, passing each node and its path from the
// root. Returning false from fn skips the children of that node.
func (n *Node) Walk(fn func(n *Node, path string) bool) {
	if n == nil {
		return
	}
	var walk func(n *Node, path []byte)
	walk = func(n *Node, path []byte) {
		if !fn(n, string(path)) {
			return
		}
		if n.left != nil {
			walk(n.left, append(path, '0'))
		}
		if n.right != nil {
			walk(n.right, append(path, '1'))
		}
	}
	walk(n, make([]byte, 0, 16))
}

// Depth returns the length of the longest root-to-leaf path.
func (n *Node) Depth() int {
	if n == nil || n.leaf {
		return 0
	}
	return 1 + max(n.left.Depth(), n.right.Depth())
}

// Leaves returns the number of leaves below n.
func (n *Node) Leaves() int {
	if n == nil {
		return 0
	}
	if n.leaf {
		return 1
	}
	return n.left.Leaves() + n.right.Leaves()
}

// queueItem orders nodes by frequency, then by insertion sequence.
type queueItem struct {
	node *Node
	seq  int
}

type nodeQueue []queueItem

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].node.freq != q[j].node.freq {
		return q[i].node.freq < q[j].node.freq
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// Build constructs the Huffman tree for freqs and returns its root.
//
// Leaves enter the queue in ascending symbol order and every merged node is
// sequenced after everything already queued, so nodes of equal frequency are
// merged first-in first-out. The first node popped becomes the left child.
// An empty table yields a nil root; a single symbol yields a bare leaf.
func Build(freqs FrequencyTable) *Node {
	if len(freqs) == 0 {
		return nil
	}

	symbols := make([]Symbol, 0, len(freqs))
	for s := range freqs {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)

	q := make(nodeQueue, 0, len(symbols))
	seq := 0
	for _, s := range symbols {
		q = append(q, queueItem{node: &Node{symbol: s, freq: freqs[s], leaf: true}, seq: seq})
		seq++
	}
	heap.Init(&q)

	for q.Len() > 1 {
		a := heap.Pop(&q).(queueItem)
		b := heap.Pop(&q).(queueItem)
		merged := &Node{freq: a.node.freq + b.node.freq, left: a.node, right: b.node}
		heap.Push(&q, queueItem{node: merged, seq: seq})
		seq++
	}
	return heap.Pop(&q).(queueItem).node
}
