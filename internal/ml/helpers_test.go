package ml

// synthetic builds rows where the target depends mostly on column 0,
// weakly on column 1 and not at all on column 2
func synthetic(n int, seed int64) ([][]float64, []float64) {
	rng := newRNG(seed)
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		a := unitFloat(rng)*10 - 5
		b := unitFloat(rng)*10 - 5
		c := unitFloat(rng)*10 - 5
		X[i] = []float64{a, b, c}
		y[i] = 4*a + 0.5*b + (unitFloat(rng)-0.5)*0.2
	}
	return X, y
}
