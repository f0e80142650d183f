package state

import (
	"context"
	"encoding/hex"
	"fmt"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/schema"
)

// RecoverConfig controls snapshot + WAL recovery.
type RecoverConfig struct {
	WALDir          string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
	UseRecvTime     bool
}

// RecoverResult contains recovered state and metadata.
type RecoverResult struct {
	Exposures   *ExposureReducer
	LastSeq     uint64
	LastEventTs int64
	ChainTip    string
}

// RecoverExposures loads a snapshot and replays the WAL tail to rebuild
// exposures.
func RecoverExposures(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, fmt.Errorf("wal dir is empty")
	}
	exposures := NewExposureReducer()
	var lastSeq uint64
	var lastEventTs int64
	var chainTip string

	if cfg.SnapshotPath != "" {
		snapshot, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		exposures.ApplySnapshot(snapshot)
		lastSeq = snapshot.LastSeq
		lastEventTs = snapshot.LastEventTs
		chainTip = snapshot.ChainTip
	}

	playbackCfg := recorder.PlaybackConfig{
		Dir:             cfg.WALDir,
		FilePrefix:      cfg.FilePrefix,
		Speed:           0,
		UseRecvTime:     cfg.UseRecvTime,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	}
	pb, err := recorder.NewPlayback(playbackCfg)
	if err != nil {
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if lastSeq == 0 && lastEventTs > 0 {
			ts := header.TsEvent
			if cfg.UseRecvTime {
				ts = header.TsRecv
			}
			if ts <= lastEventTs {
				return nil
			}
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}

		if header.Type != schema.EventCommitRecord {
			return nil
		}
		commit, ok := codec.DecodeCommitRecord(payload)
		if !ok {
			return fmt.Errorf("decode commit record failed")
		}
		exposures.ApplyCommit(commit)
		// the tail extends the chain past the snapshot tip
		chainTip = hex.EncodeToString(commit.RecordHash[:])
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{
		Exposures:   exposures,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		ChainTip:    chainTip,
	}, nil
}
