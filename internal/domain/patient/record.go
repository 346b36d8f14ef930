package patient

import "math"

// Record is a raw, sparse patient record as it arrives from a dataset row or an
// intake message. Values may hold float64, int, bool, numeric strings or
// placeholders such as "."; the feature preprocessor owns coercion.
type Record struct {
	ID     string                 `json:"id"`
	Email  string                 `json:"email,omitempty"`
	Values map[string]interface{} `json:"values"`

	// History holds chronological readings (oldest first) keyed by vital name,
	// used to derive trend features when they are not supplied.
	History map[string][]float64 `json:"history,omitempty"`
}

// NewRecord creates a record with an empty value map
func NewRecord(id string) *Record {
	return &Record{
		ID:     id,
		Values: make(map[string]interface{}),
	}
}

// Set stores a raw value and returns the record for chaining
func (r *Record) Set(name string, value interface{}) *Record {
	if r.Values == nil {
		r.Values = make(map[string]interface{})
	}
	r.Values[name] = value
	return r
}

// Get returns the raw value and whether it was present
func (r *Record) Get(name string) (interface{}, bool) {
	if r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[name]
	return v, ok
}

// LabeledRecord pairs a record with its known outcome per horizon.
// A nil label means the outcome is unknown for that horizon.
type LabeledRecord struct {
	Record *Record
	Labels map[Horizon]*float64
}

// Complete reports whether every horizon has a finite label. NaN and Inf
// count as unknown outcomes.
func (l LabeledRecord) Complete() bool {
	for _, h := range Horizons {
		v, ok := l.Labels[h]
		if !ok || v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return false
		}
	}
	return true
}
