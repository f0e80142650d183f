package state

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/schema"
)

func TestExposureReducerAccumulates(t *testing.T) {
	r := NewExposureReducer()

	next := r.ApplyCommit(schema.CommitRecord{SymbolID: 1, Delta: 100})
	assert.Equal(t, schema.Exposure(100), next)
	next = r.ApplyCommit(schema.CommitRecord{SymbolID: 1, Delta: -40})
	assert.Equal(t, schema.Exposure(60), next)
	r.ApplyCommit(schema.CommitRecord{SymbolID: 2, Delta: -30})

	assert.Equal(t, schema.Exposure(60), r.Exposure(1))
	assert.Equal(t, schema.Exposure(-30), r.Exposure(2))
	assert.Equal(t, schema.Exposure(90), r.Gross())
	assert.Equal(t, 2, r.Count())
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := NewExposureReducer()
	r.ApplyCommit(schema.CommitRecord{SymbolID: 3, Delta: 500})
	r.ApplyCommit(schema.CommitRecord{SymbolID: 1, Delta: -200})

	snapshot := r.SnapshotWithMeta(42, 1700000000, "tip-hash")
	require.Len(t, snapshot.Exposures, 2)
	// entries sorted by symbol ID
	assert.Equal(t, uint32(1), snapshot.Exposures[0].SymbolID)
	assert.Equal(t, uint32(3), snapshot.Exposures[1].SymbolID)
	assert.Equal(t, uint64(42), snapshot.LastSeq)
	assert.Equal(t, "tip-hash", snapshot.ChainTip)

	path := filepath.Join(t.TempDir(), "exposures.json")
	require.NoError(t, WriteSnapshot(path, snapshot))
	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snapshot.LastSeq, loaded.LastSeq)
	assert.Equal(t, snapshot.ChainTip, loaded.ChainTip)
	assert.Equal(t, snapshot.Exposures, loaded.Exposures)

	restored := NewExposureReducer()
	restored.ApplyCommit(schema.CommitRecord{SymbolID: 9, Delta: 1})
	restored.ApplySnapshot(loaded)
	assert.Equal(t, schema.Exposure(-200), restored.Exposure(1))
	assert.Equal(t, schema.Exposure(500), restored.Exposure(3))
	assert.Zero(t, restored.Exposure(9))
}

func TestCompareSnapshots(t *testing.T) {
	a := Snapshot{Exposures: []ExposureEntry{{SymbolID: 1, Exposure: 10}}}
	b := Snapshot{Exposures: []ExposureEntry{{SymbolID: 1, Exposure: 10}}}
	assert.NoError(t, CompareSnapshots(a, b))

	b.Exposures[0].Exposure = 11
	assert.Error(t, CompareSnapshots(a, b))

	b.Exposures = append(b.Exposures, ExposureEntry{SymbolID: 2, Exposure: 1})
	assert.Error(t, CompareSnapshots(a, b))
}

func writeCommitJournal(t *testing.T, dir string, commits []schema.CommitRecord) {
	t.Helper()
	writer, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, writer.Start(context.Background()))

	for i, commit := range commits {
		header := schema.EventHeader{
			Type:    schema.EventCommitRecord,
			Seq:     uint64(i + 1),
			TsEvent: int64(1000 + i),
			TsRecv:  int64(1000 + i),
		}
		payload := codec.EncodeCommitRecord(nil, commit)
		require.NoError(t, writer.TryAppend(header, payload))
	}
	require.NoError(t, writer.Close())
}

func TestRecoverExposuresFromJournal(t *testing.T) {
	dir := t.TempDir()
	writeCommitJournal(t, dir, []schema.CommitRecord{
		{DecisionID: 1, SymbolID: 1, Delta: 100, NewExposure: 100},
		{DecisionID: 2, SymbolID: 2, Delta: -50, NewExposure: -50},
		{DecisionID: 3, SymbolID: 1, Delta: 25, NewExposure: 125},
	})

	result, err := RecoverExposures(context.Background(), RecoverConfig{WALDir: dir})
	require.NoError(t, err)

	assert.Equal(t, schema.Exposure(125), result.Exposures.Exposure(1))
	assert.Equal(t, schema.Exposure(-50), result.Exposures.Exposure(2))
	assert.Equal(t, uint64(3), result.LastSeq)
	assert.Equal(t, int64(1002), result.LastEventTs)
}

func fillHash(b byte) (h [schema.HashSize]byte) {
	for i := range h {
		h[i] = b
	}
	return h
}

func hashHex(b byte) string {
	h := fillHash(b)
	return hex.EncodeToString(h[:])
}

func TestRecoverSkipsEventsCoveredBySnapshot(t *testing.T) {
	dir := t.TempDir()
	writeCommitJournal(t, dir, []schema.CommitRecord{
		{DecisionID: 1, SymbolID: 1, Delta: 100, RecordHash: fillHash(0xaa)},
		{DecisionID: 2, SymbolID: 1, Delta: 25, RecordHash: fillHash(0xbb)},
	})

	snapshotPath := filepath.Join(dir, "exposures.json")
	require.NoError(t, WriteSnapshot(snapshotPath, Snapshot{
		LastSeq:     1,
		LastEventTs: 1000,
		ChainTip:    hashHex(0xaa),
		Exposures:   []ExposureEntry{{SymbolID: 1, Exposure: 100}},
	}))

	result, err := RecoverExposures(context.Background(), RecoverConfig{
		WALDir:       dir,
		SnapshotPath: snapshotPath,
	})
	require.NoError(t, err)

	// seq 1 is already inside the snapshot, only seq 2 replays
	assert.Equal(t, schema.Exposure(125), result.Exposures.Exposure(1))
	assert.Equal(t, uint64(2), result.LastSeq)
	assert.Equal(t, hashHex(0xbb), result.ChainTip)
}

func TestRecoverAdvancesChainTipPastSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeCommitJournal(t, dir, []schema.CommitRecord{
		{DecisionID: 1, SymbolID: 1, Delta: 500, NewExposure: 500, RecordHash: fillHash(0xab)},
	})

	snapshotPath := filepath.Join(dir, "exposures.json")
	require.NoError(t, WriteSnapshot(snapshotPath, Snapshot{
		LastEventTs: 900,
		ChainTip:    hashHex(0x11),
	}))

	result, err := RecoverExposures(context.Background(), RecoverConfig{
		WALDir:       dir,
		SnapshotPath: snapshotPath,
	})
	require.NoError(t, err)

	// the tail commit past the snapshot moves both exposure and tip,
	// so a resumed chain extends the journal's real last record
	assert.Equal(t, schema.Exposure(500), result.Exposures.Exposure(1))
	assert.Equal(t, hashHex(0xab), result.ChainTip)
}

func TestRecoverRequiresWALDir(t *testing.T) {
	_, err := RecoverExposures(context.Background(), RecoverConfig{})
	assert.Error(t, err)
}
