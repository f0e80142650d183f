package state

import "main/internal/schema"

// ExposureReducer updates per-symbol exposures from commit records.
type ExposureReducer struct {
	exposures map[uint32]schema.Exposure
}

// NewExposureReducer creates an empty reducer.
func NewExposureReducer() *ExposureReducer {
	return &ExposureReducer{exposures: make(map[uint32]schema.Exposure)}
}

// ApplyCommit applies a committed delta and returns the new exposure.
func (r *ExposureReducer) ApplyCommit(commit schema.CommitRecord) schema.Exposure {
	next := schema.Exposure(int64(r.exposures[commit.SymbolID]) + int64(commit.Delta))
	r.exposures[commit.SymbolID] = next
	return next
}

// ApplySnapshot replaces exposures with a snapshot.
func (r *ExposureReducer) ApplySnapshot(snapshot Snapshot) {
	if r.exposures == nil {
		r.exposures = make(map[uint32]schema.Exposure, len(snapshot.Exposures))
	} else {
		for key := range r.exposures {
			delete(r.exposures, key)
		}
	}
	for _, entry := range snapshot.Exposures {
		r.exposures[entry.SymbolID] = entry.Exposure
	}
}

// Exposure returns the current exposure for a symbol.
func (r *ExposureReducer) Exposure(symbolID uint32) schema.Exposure {
	return r.exposures[symbolID]
}

// Gross returns the sum of absolute exposures.
func (r *ExposureReducer) Gross() schema.Exposure {
	var gross schema.Exposure
	for _, e := range r.exposures {
		if e < 0 {
			gross -= e
		} else {
			gross += e
		}
	}
	return gross
}

// Each calls fn for every tracked symbol.
func (r *ExposureReducer) Each(fn func(symbolID uint32, exposure schema.Exposure)) {
	for symbolID, exposure := range r.exposures {
		fn(symbolID, exposure)
	}
}

// Count returns the number of tracked symbols.
func (r *ExposureReducer) Count() int {
	return len(r.exposures)
}
