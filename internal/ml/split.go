package ml

// Fold is one train/test partition of row indices
type Fold struct {
	Train []int
	Test  []int
}

// permutation returns a seeded shuffle of 0..n-1
func permutation(n int, seed int64) []int {
	rng := newRNG(seed)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(rng.Uint32n(uint32(i + 1)))
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// TrainTestSplit shuffles rows and holds out testFrac of them.
// At least one row lands on each side when n >= 2.
func TrainTestSplit(n int, testFrac float64, seed int64) (train, test []int) {
	idx := permutation(n, seed)
	k := int(float64(n)*testFrac + 0.5)
	if n >= 2 {
		if k < 1 {
			k = 1
		}
		if k > n-1 {
			k = n - 1
		}
	} else {
		k = 0
	}
	return idx[k:], idx[:k]
}

// KFold partitions shuffled rows into k folds of near-equal size.
// k is clamped to [2, n].
func KFold(n, k int, seed int64) []Fold {
	if k > n {
		k = n
	}
	if k < 2 {
		k = 2
	}
	idx := permutation(n, seed)
	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		test := idx[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, idx[:start]...)
		train = append(train, idx[start+size:]...)
		folds[f] = Fold{Train: train, Test: test}
		start += size
	}
	return folds
}

// Rows selects rows by index
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, r := range idx {
		out[i] = X[r]
	}
	return out
}

// Values selects values by index
func Values(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
