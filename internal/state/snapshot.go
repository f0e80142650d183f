package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/schema"
)

// Snapshot captures exposures at a point in time.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	ChainTip    string          `json:"chainTip"`
	Exposures   []ExposureEntry `json:"exposures"`
}

// ExposureEntry is a single symbol exposure entry.
type ExposureEntry struct {
	SymbolID uint32          `json:"symbolId"`
	Exposure schema.Exposure `json:"exposure"`
}

// Snapshot builds a snapshot from current exposures.
func (r *ExposureReducer) Snapshot() Snapshot {
	return r.SnapshotWithMeta(0, 0, "")
}

// SnapshotWithMeta builds a snapshot with event metadata and chain tip.
func (r *ExposureReducer) SnapshotWithMeta(lastSeq uint64, lastEventTs int64, chainTip string) Snapshot {
	entries := make([]ExposureEntry, 0, len(r.exposures))
	for symbolID, exposure := range r.exposures {
		entries = append(entries, ExposureEntry{
			SymbolID: symbolID,
			Exposure: exposure,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SymbolID < entries[j].SymbolID
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		ChainTip:    chainTip,
		Exposures:   entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots match.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Exposures) != len(actual.Exposures) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Exposures), len(actual.Exposures))
	}
	expectedMap := make(map[uint32]schema.Exposure, len(expected.Exposures))
	for _, entry := range expected.Exposures {
		expectedMap[entry.SymbolID] = entry.Exposure
	}
	for _, entry := range actual.Exposures {
		want, ok := expectedMap[entry.SymbolID]
		if !ok {
			return fmt.Errorf("snapshot missing symbol: %d", entry.SymbolID)
		}
		if want != entry.Exposure {
			return fmt.Errorf("snapshot exposure mismatch: symbol=%d expected=%d actual=%d", entry.SymbolID, want, entry.Exposure)
		}
	}
	return nil
}
