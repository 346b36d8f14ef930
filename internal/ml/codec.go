package ml

import "encoding/gob"

// Concrete regressors travel through gob inside interface fields
func init() {
	gob.Register(&Tree{})
	gob.Register(&Forest{})
	gob.Register(&Boosting{})
	gob.Register(&Linear{})
}
