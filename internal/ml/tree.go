package ml

import (
	"math"
	"sort"

	"github.com/valyala/fastrand"

	"riskstrat/pkg/errors"
)

const leafFeature = -1

// Node is one entry of a flattened regression tree. Leaves have Feature == -1.
// Value is the mean target of the training samples reaching the node.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// TreeParams controls tree growth
type TreeParams struct {
	MaxDepth        int     // 0 means unlimited
	MinSamplesSplit int     // minimum samples to consider a split
	MinSamplesLeaf  int     // minimum samples on each side of a split
	MaxFeatures     float64 // fraction of features tried per split, 0 or >=1 means all
	RandomSplits    bool    // draw one random threshold per feature (extra-trees)
}

func (p TreeParams) normalized() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Tree is a fitted CART regression tree
type Tree struct {
	Nodes      []Node
	NFeatures  int
	Importance []float64 // impurity decrease per feature, unnormalized
}

// Kind implements Regressor
func (t *Tree) Kind() string { return "tree" }

// Predict implements Regressor
func (t *Tree) Predict(x []float64) (float64, error) {
	if len(x) != t.NFeatures {
		return 0, &errors.ShapeError{Expected: t.NFeatures, Got: len(x), Position: -1}
	}
	return t.Nodes[t.leaf(x)].Value, nil
}

func (t *Tree) leaf(x []float64) int {
	i := 0
	for t.Nodes[i].Feature != leafFeature {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Contributions walks the decision path and credits each value change to the
// feature that was split on. bias is the root mean.
func (t *Tree) Contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, t.NFeatures)
	if len(x) != t.NFeatures {
		return 0, contrib
	}
	i := 0
	for t.Nodes[i].Feature != leafFeature {
		n := t.Nodes[i]
		next := n.Right
		if x[n.Feature] <= n.Threshold {
			next = n.Left
		}
		contrib[n.Feature] += t.Nodes[next].Value - n.Value
		i = next
	}
	return t.Nodes[0].Value, contrib
}

// FeatureImportances returns impurity importances normalized to sum to 1
func (t *Tree) FeatureImportances() []float64 {
	return normalize(t.Importance)
}

// Depth returns the depth of the deepest leaf
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature == leafFeature {
			return d
		}
		l, r := walk(n.Left, d+1), walk(n.Right, d+1)
		if l > r {
			return l
		}
		return r
	}
	return walk(0, 0)
}

// treeBuilder grows a single tree over a row subset
type treeBuilder struct {
	params TreeParams
	X      [][]float64
	y      []float64
	rng    *fastrand.RNG
	tree   *Tree
}

// growTree fits a tree on the rows in idx (duplicates allowed for bootstrap)
func growTree(X [][]float64, y []float64, idx []int, params TreeParams, rng *fastrand.RNG) (*Tree, error) {
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "grow tree")
	}
	width := len(X[0])
	b := &treeBuilder{
		params: params.normalized(),
		X:      X,
		y:      y,
		rng:    rng,
		tree:   &Tree{NFeatures: width, Importance: make([]float64, width)},
	}
	b.grow(idx, 0)
	return b.tree, nil
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	mean, sse := meanSSE(b.y, idx)
	node := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: leafFeature, Value: mean, Samples: len(idx)})

	if len(idx) < b.params.MinSamplesSplit || sse <= 1e-12 {
		return node
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return node
	}

	best, ok := b.bestSplit(idx, sse)
	if !ok {
		return node
	}

	b.tree.Importance[best.feature] += best.gain
	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)

	n := &b.tree.Nodes[node]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = left
	n.Right = right
	return node
}

func (b *treeBuilder) candidateFeatures() []int {
	width := b.tree.NFeatures
	feats := make([]int, width)
	for i := range feats {
		feats[i] = i
	}
	k := width
	if f := b.params.MaxFeatures; f > 0 && f < 1 {
		k = int(math.Ceil(f * float64(width)))
	}
	if k >= width {
		return feats
	}
	// partial Fisher-Yates
	for i := 0; i < k; i++ {
		j := i + int(b.rng.Uint32n(uint32(width-i)))
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:k]
}

func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	var best split
	found := false
	for _, f := range b.candidateFeatures() {
		var s split
		var ok bool
		if b.params.RandomSplits {
			s, ok = b.randomSplit(idx, f, parentSSE)
		} else {
			s, ok = b.exhaustiveSplit(idx, f, parentSSE)
		}
		if ok && (!found || s.gain > best.gain) {
			best = s
			found = true
		}
	}
	if !found || best.gain <= 0 {
		return split{}, false
	}
	best.left, best.right = b.partition(idx, best.feature, best.threshold)
	return best, true
}

// exhaustiveSplit scans every boundary between sorted distinct values
func (b *treeBuilder) exhaustiveSplit(idx []int, f int, parentSSE float64) (split, bool) {
	order := make([]int, len(idx))
	copy(order, idx)
	sort.Slice(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

	n := len(order)
	var totalSum, totalSq float64
	for _, i := range order {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	minLeaf := b.params.MinSamplesLeaf
	var leftSum, leftSq float64
	best := split{feature: f}
	found := false
	for k := 0; k < n-1; k++ {
		v := b.y[order[k]]
		leftSum += v
		leftSq += v * v
		nl := k + 1
		nr := n - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		lo, hi := b.X[order[k]][f], b.X[order[k+1]][f]
		if lo == hi {
			continue
		}
		rightSum := totalSum - leftSum
		rightSq := totalSq - leftSq
		sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
		gain := parentSSE - sse
		if !found || gain > best.gain {
			best.gain = gain
			best.threshold = lo + (hi-lo)/2
			found = true
		}
	}
	return best, found
}

// randomSplit draws a single threshold uniformly between the node min and max
func (b *treeBuilder) randomSplit(idx []int, f int, parentSSE float64) (split, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := b.X[i][f]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return split{}, false
	}
	threshold := lo + unitFloat(b.rng)*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}

	var nl, nr int
	var ls, lq, rs, rq float64
	for _, i := range idx {
		v := b.y[i]
		if b.X[i][f] <= threshold {
			nl++
			ls += v
			lq += v * v
		} else {
			nr++
			rs += v
			rq += v * v
		}
	}
	if nl < b.params.MinSamplesLeaf || nr < b.params.MinSamplesLeaf {
		return split{}, false
	}
	sse := (lq - ls*ls/float64(nl)) + (rq - rs*rs/float64(nr))
	return split{feature: f, threshold: threshold, gain: parentSSE - sse}, true
}

func (b *treeBuilder) partition(idx []int, f int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx)/2)
	right := make([]int, 0, len(idx)/2)
	for _, i := range idx {
		if b.X[i][f] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	var sum, sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sq - sum*sum/n
	if sse < 0 {
		sse = 0
	}
	return mean, sse
}

func unitFloat(rng *fastrand.RNG) float64 {
	return float64(rng.Uint32()) / (1 << 32)
}

// newRNG returns a generator seeded deterministically. fastrand reseeds a
// zero state from the clock, so zero is mapped to a fixed constant.
func newRNG(seed int64) *fastrand.RNG {
	s := uint32(seed) ^ uint32(seed>>32)
	if s == 0 {
		s = 0x9e3779b9
	}
	var rng fastrand.RNG
	rng.Seed(s)
	return &rng
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var total float64
	for _, x := range v {
		total += math.Abs(x)
	}
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = math.Abs(x) / total
	}
	return out
}
