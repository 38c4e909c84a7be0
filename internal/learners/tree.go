// Package learners implements the three base learners of the ensemble
// (bagged trees, boosted trees, multinomial linear model) and the
// soft-voting combiner. All learners share the BaseLearner capability so
// the combiner never needs to know which families it is averaging.
package learners

import (
	"math/rand"
	"sort"
)

// TreeNode is a node of a binary decision tree. Leaves carry either a class
// distribution (classification) or a scalar value (regression), internal
// nodes a feature/threshold split. Field names stay short because snapshots
// serialize whole forests.
type TreeNode struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      *TreeNode `json:"l,omitempty"`
	Right     *TreeNode `json:"r,omitempty"`
	Leaf      bool      `json:"leaf,omitempty"`
	Probs     []float64 `json:"p,omitempty"`
	Value     float64   `json:"v,omitempty"`
}

func (n *TreeNode) descend(x []float64) *TreeNode {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

// predictProbs walks a classification tree to its leaf distribution.
func (n *TreeNode) predictProbs(x []float64) []float64 {
	return n.descend(x).Probs
}

// predictValue walks a regression tree to its leaf value.
func (n *TreeNode) predictValue(x []float64) float64 {
	return n.descend(x).Value
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

// sampleFeatures draws k distinct feature indices.
func sampleFeatures(dim, k int, rng *rand.Rand) []int {
	if k >= dim {
		feats := make([]int, dim)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	return rng.Perm(dim)[:k]
}

// orderByFeature returns idx sorted by the given feature value.
func orderByFeature(x [][]float64, idx []int, feature int) []int {
	order := make([]int, len(idx))
	copy(order, idx)
	sort.Slice(order, func(a, b int) bool {
		return x[order[a]][feature] < x[order[b]][feature]
	})
	return order
}

// buildClassTree grows a CART classification tree with gini splits over a
// random feature subset per node.
func buildClassTree(x [][]float64, y []int, idx []int, classes, depth, maxDepth, minLeaf, featsPerSplit int, rng *rand.Rand) *TreeNode {
	counts := make([]int, classes)
	for _, i := range idx {
		counts[y[i]]++
	}
	if depth >= maxDepth || len(idx) < 2*minLeaf || isPure(counts) {
		return classLeaf(counts)
	}

	best := bestGiniSplit(x, y, idx, counts, classes, minLeaf, featsPerSplit, rng)
	if best == nil {
		return classLeaf(counts)
	}
	return &TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildClassTree(x, y, best.leftIdx, classes, depth+1, maxDepth, minLeaf, featsPerSplit, rng),
		Right:     buildClassTree(x, y, best.rightIdx, classes, depth+1, maxDepth, minLeaf, featsPerSplit, rng),
	}
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func classLeaf(counts []int) *TreeNode {
	total := 0
	for _, c := range counts {
		total += c
	}
	probs := make([]float64, len(counts))
	if total > 0 {
		for i, c := range counts {
			probs[i] = float64(c) / float64(total)
		}
	} else {
		for i := range probs {
			probs[i] = 1 / float64(len(probs))
		}
	}
	return &TreeNode{Leaf: true, Probs: probs}
}

func giniImpurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func bestGiniSplit(x [][]float64, y []int, idx []int, counts []int, classes, minLeaf, featsPerSplit int, rng *rand.Rand) *split {
	n := len(idx)
	parent := giniImpurity(counts, n)
	var best *split

	for _, feature := range sampleFeatures(len(x[idx[0]]), featsPerSplit, rng) {
		order := orderByFeature(x, idx, feature)
		left := make([]int, classes)
		right := make([]int, classes)
		copy(right, counts)

		for pos := 0; pos < n-1; pos++ {
			c := y[order[pos]]
			left[c]++
			right[c]--

			cur := x[order[pos]][feature]
			next := x[order[pos+1]][feature]
			if cur == next {
				continue
			}
			nl, nr := pos+1, n-pos-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			gain := parent -
				(float64(nl)*giniImpurity(left, nl)+float64(nr)*giniImpurity(right, nr))/float64(n)
			if gain <= 1e-12 {
				continue
			}
			if best == nil || gain > best.gain {
				best = &split{
					feature:   feature,
					threshold: (cur + next) / 2,
					gain:      gain,
					leftIdx:   append([]int(nil), order[:pos+1]...),
					rightIdx:  append([]int(nil), order[pos+1:]...),
				}
			}
		}
	}
	return best
}

// buildRegTree grows a variance-reduction regression tree. Leaf values come
// from leafFn so callers can apply loss-specific leaf estimates.
func buildRegTree(x [][]float64, target []float64, idx []int, depth, maxDepth, minLeaf, featsPerSplit int, rng *rand.Rand, leafFn func(idx []int) float64) *TreeNode {
	if depth >= maxDepth || len(idx) < 2*minLeaf {
		return &TreeNode{Leaf: true, Value: leafFn(idx)}
	}
	best := bestVarianceSplit(x, target, idx, minLeaf, featsPerSplit, rng)
	if best == nil {
		return &TreeNode{Leaf: true, Value: leafFn(idx)}
	}
	return &TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      buildRegTree(x, target, best.leftIdx, depth+1, maxDepth, minLeaf, featsPerSplit, rng, leafFn),
		Right:     buildRegTree(x, target, best.rightIdx, depth+1, maxDepth, minLeaf, featsPerSplit, rng, leafFn),
	}
}

func bestVarianceSplit(x [][]float64, target []float64, idx []int, minLeaf, featsPerSplit int, rng *rand.Rand) *split {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += target[i]
	}
	var best *split

	for _, feature := range sampleFeatures(len(x[idx[0]]), featsPerSplit, rng) {
		order := orderByFeature(x, idx, feature)
		var leftSum float64
		for pos := 0; pos < n-1; pos++ {
			leftSum += target[order[pos]]

			cur := x[order[pos]][feature]
			next := x[order[pos+1]][feature]
			if cur == next {
				continue
			}
			nl, nr := pos+1, n-pos-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum := total - leftSum
			// SSE reduction is maximized by maximizing between-group
			// sum-of-squares.
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - total*total/float64(n)
			if gain <= 1e-12 {
				continue
			}
			if best == nil || gain > best.gain {
				best = &split{
					feature:   feature,
					threshold: (cur + next) / 2,
					gain:      gain,
					leftIdx:   append([]int(nil), order[:pos+1]...),
					rightIdx:  append([]int(nil), order[pos+1:]...),
				}
			}
		}
	}
	return best
}
