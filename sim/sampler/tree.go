// Package sampler implements a dynamic weighted random sampler.
//
// Tree keeps one leaf per live key in a heap-ordered binary tree whose internal
// nodes cache the total weight of their left subtree. Insert, Remove, Update and
// Sample all run in O(log n); the tree is rebuilt from the live weight set only
// when no reusable slot is left (or when it has become sparse, see
// WithCompactionRatio), which amortizes to O(1) per operation.
//
// The layout of the tree is private. Only TotalWeight and Weight are observable.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	// ErrNonPositiveWeight is returned when inserting a zero weight. Zero weights
	// are represented by absence, never by a live entry.
	ErrNonPositiveWeight = errors.New("sampler: weight must be positive")
	// ErrInvalidWeight is returned for negative, NaN or infinite weights.
	ErrInvalidWeight = errors.New("sampler: weight must be a finite non-negative number")
)

// DefaultCompactionRatio is the live/capacity ratio below which a removal
// triggers a rebuild.
const DefaultCompactionRatio = 0.125

// trees smaller than this never compact
const minCompactionLeaves = 64

type nodeKind uint8

const (
	nodeFree nodeKind = iota
	nodeLeaf
	nodeInternal
)

type node[K comparable] struct {
	kind    nodeKind
	key     K       // leaf only
	leftSum float64 // internal only
}

// Option configures a Tree.
type Option func(*options)

type options struct {
	compactionRatio float64
}

// WithCompactionRatio sets the fraction of leaf capacity below which the tree is
// rebuilt after a removal. Zero disables compaction.
func WithCompactionRatio(ratio float64) Option {
	return func(o *options) {
		o.compactionRatio = ratio
	}
}

// Tree is a weighted sampler over keys of type K. The zero value is not usable;
// construct with New or NewFromWeights.
//
// Thread-safety: NOT thread-safe.
type Tree[K comparable] struct {
	nodes   []node[K]
	index   map[K]int
	weights map[K]float64

	// free is a stack of candidate slots for insertion. Entries are validated
	// lazily on pop; onFree deduplicates pushes.
	free   []int
	onFree []bool

	total           float64
	compactionRatio float64
	rebuilds        int
}

// New returns an empty Tree.
func New[K comparable](opts ...Option) *Tree[K] {
	o := options{compactionRatio: DefaultCompactionRatio}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tree[K]{
		index:           make(map[K]int),
		weights:         make(map[K]float64),
		compactionRatio: o.compactionRatio,
	}
}

// NewFromWeights bulk-loads a Tree. keys[i] gets weights[i]; zero weights are
// dropped. Leaves are laid out in the order given, so identical inputs always
// produce identical trees.
func NewFromWeights[K comparable](keys []K, weights []float64, opts ...Option) (*Tree[K], error) {
	if len(keys) != len(weights) {
		return nil, fmt.Errorf("sampler: %d keys but %d weights", len(keys), len(weights))
	}
	t := New[K](opts...)
	live := make([]K, 0, len(keys))
	for i, key := range keys {
		w := weights[i]
		if err := checkWeight(w); err != nil {
			return nil, fmt.Errorf("key %v: %w", key, err)
		}
		if w == 0 {
			continue
		}
		if _, dup := t.weights[key]; dup {
			return nil, fmt.Errorf("sampler: duplicate key %v", key)
		}
		t.weights[key] = w
		live = append(live, key)
	}
	t.build(live)
	return t, nil
}

// TotalWeight returns the sum of all live weights.
func (t *Tree[K]) TotalWeight() float64 {
	return t.total
}

// Weight returns the weight of key, or 0 if it is absent.
func (t *Tree[K]) Weight(key K) float64 {
	return t.weights[key]
}

// Len returns the number of live keys.
func (t *Tree[K]) Len() int {
	return len(t.weights)
}

// Contains reports whether key is live.
func (t *Tree[K]) Contains(key K) bool {
	_, ok := t.weights[key]
	return ok
}

// Insert adds key with weight w, or changes its weight if already present.
func (t *Tree[K]) Insert(key K, w float64) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	if w == 0 {
		return ErrNonPositiveWeight
	}
	if _, ok := t.weights[key]; ok {
		t.set(key, w)
		return nil
	}
	t.weights[key] = w
	slot, ok := t.popFree()
	if !ok {
		t.build(append(t.liveKeys(), key))
		return nil
	}
	t.place(slot, key, w)
	return nil
}

// Remove deletes key. It reports whether key was live.
func (t *Tree[K]) Remove(key K) bool {
	w, ok := t.weights[key]
	if !ok {
		return false
	}
	slot := t.index[key]
	delete(t.weights, key)
	delete(t.index, key)

	t.propagate(slot, -w)
	t.vacate(slot)
	if len(t.weights) == 0 {
		t.total = 0
	} else {
		t.total -= w
	}
	t.maybeCompact()
	return true
}

// Update sets the weight of key, inserting it if absent. A weight of zero is
// equivalent to Remove. A negative weight also removes the key but is reported
// as ErrInvalidWeight; NaN and infinities leave the tree unchanged.
func (t *Tree[K]) Update(key K, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, w)
	}
	if w <= 0 {
		t.Remove(key)
		if w < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidWeight, w)
		}
		return nil
	}
	if _, ok := t.weights[key]; ok {
		t.set(key, w)
		return nil
	}
	return t.Insert(key, w)
}

// Sample draws a key with probability proportional to its weight, consuming
// exactly one Float64 from rng. ok is false only when the tree is empty, in
// which case rng is not touched.
func (t *Tree[K]) Sample(rng *rand.Rand) (key K, ok bool) {
	if len(t.weights) == 0 {
		return key, false
	}
	x := rng.Float64() * t.total
	i := 0
	for {
		n := &t.nodes[i]
		if n.kind == nodeLeaf {
			return n.key, true
		}
		l, r := leftChild(i), rightChild(i)
		if x < n.leftSum && t.nodes[l].kind != nodeFree {
			i = l
			continue
		}
		x -= n.leftSum
		// Rounding can push x past the last live leaf; fall back to the
		// non-empty side.
		if t.nodes[r].kind == nodeFree {
			i = l
		} else {
			i = r
		}
	}
}

func (t *Tree[K]) set(key K, w float64) {
	delta := w - t.weights[key]
	if delta == 0 {
		return
	}
	t.weights[key] = w
	t.propagate(t.index[key], delta)
	t.total += delta
}

// place puts key into a free slot popped from the free list. If the slot's
// parent is a leaf, the parent is split: its key moves to the sibling slot and
// the parent becomes internal.
func (t *Tree[K]) place(slot int, key K, w float64) {
	if slot == 0 {
		t.setLeaf(0, key)
		t.total = w
		return
	}
	p := parent(slot)
	if t.nodes[p].kind == nodeLeaf {
		old := t.nodes[p].key
		t.setLeaf(sibling(slot), old)
		t.setLeaf(slot, key)
		leftKey := t.nodes[leftChild(p)].key
		t.nodes[p] = node[K]{kind: nodeInternal, leftSum: t.weights[leftKey]}
		t.propagate(p, w)
	} else {
		t.setLeaf(slot, key)
		t.propagate(slot, w)
	}
	t.total += w
}

// vacate frees slot i after its weight has been propagated away. A sibling leaf
// is promoted into the parent; a parent left with two free children is freed
// in turn.
func (t *Tree[K]) vacate(i int) {
	for {
		t.nodes[i] = node[K]{}
		t.pushFree(i)
		if i == 0 {
			return
		}
		p, s := parent(i), sibling(i)
		switch t.nodes[s].kind {
		case nodeLeaf:
			key := t.nodes[s].key
			t.nodes[s] = node[K]{}
			t.pushFree(s)
			t.setLeaf(p, key)
			return
		case nodeInternal:
			if i == leftChild(p) {
				t.nodes[p].leftSum = 0
			}
			return
		default:
			i = p
		}
	}
}

func (t *Tree[K]) setLeaf(i int, key K) {
	t.nodes[i] = node[K]{kind: nodeLeaf, key: key}
	t.index[key] = i
	if r := rightChild(i); r < len(t.nodes) {
		t.pushFree(r)
	}
}

// propagate adds delta to the left sums of every ancestor whose left subtree
// contains slot i.
func (t *Tree[K]) propagate(i int, delta float64) {
	for i > 0 {
		p := parent(i)
		if i == leftChild(p) {
			t.nodes[p].leftSum += delta
		}
		i = p
	}
}

func (t *Tree[K]) pushFree(i int) {
	if t.onFree[i] {
		return
	}
	t.onFree[i] = true
	t.free = append(t.free, i)
}

func (t *Tree[K]) popFree() (int, bool) {
	for len(t.free) > 0 {
		i := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.onFree[i] = false
		if t.usable(i) {
			return i, true
		}
	}
	return -1, false
}

// usable reports whether a new leaf can go into slot i: the slot must be free
// and hang off a live node (or be the root of an empty tree).
func (t *Tree[K]) usable(i int) bool {
	if t.nodes[i].kind != nodeFree {
		return false
	}
	return i == 0 || t.nodes[parent(i)].kind != nodeFree
}

func (t *Tree[K]) maybeCompact() {
	if t.compactionRatio <= 0 {
		return
	}
	leaves := (len(t.nodes) + 1) / 2
	if leaves < minCompactionLeaves {
		return
	}
	if float64(len(t.weights)) < t.compactionRatio*float64(leaves) {
		t.build(t.liveKeys())
	}
}

// liveKeys returns the live keys in slot order.
func (t *Tree[K]) liveKeys() []K {
	keys := make([]K, 0, len(t.weights)+1)
	for i := range t.nodes {
		if t.nodes[i].kind == nodeLeaf {
			keys = append(keys, t.nodes[i].key)
		}
	}
	return keys
}

// build lays keys out as a full binary tree in heap order: n leaves occupy
// slots n-1..2n-2 and slots 0..n-2 are internal. The backing array holds
// 2m-1 slots, m the next power of two >= n, so leaves with children inside the
// array become split points for later insertions.
func (t *Tree[K]) build(keys []K) {
	t.rebuilds++
	n := len(keys)
	t.index = make(map[K]int, n)
	t.free = t.free[:0]
	if n == 0 {
		t.nodes = nil
		t.onFree = nil
		t.total = 0
		return
	}

	size := 2*nextPow2(n) - 1
	t.nodes = make([]node[K], size)
	t.onFree = make([]bool, size)

	first := n - 1
	sums := make([]float64, 2*n-1)
	for i := 2*n - 2; i >= 0; i-- {
		if i >= first {
			key := keys[i-first]
			t.nodes[i] = node[K]{kind: nodeLeaf, key: key}
			t.index[key] = i
			sums[i] = t.weights[key]
			continue
		}
		l, r := leftChild(i), rightChild(i)
		t.nodes[i] = node[K]{kind: nodeInternal, leftSum: sums[l]}
		sums[i] = sums[l] + sums[r]
	}
	t.total = sums[0]

	// Push deepest split points first so that pops split shallow leaves first.
	for i := 2*n - 2; i >= first; i-- {
		if r := rightChild(i); r < size {
			t.pushFree(r)
		}
	}
}

func checkWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, w)
	}
	return nil
}

func parent(i int) int     { return (i - 1) / 2 }
func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }

func sibling(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}

func nextPow2(n int) int {
	m := 1
	for m < n {
		m <<= 1
	}
	return m
}
