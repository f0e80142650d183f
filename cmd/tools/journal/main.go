package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	dir := flag.String("dir", "testdata/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: decisions)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Decode known payload types")
	flag.Parse()

	cfg := recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		UseRecvTime:     *useRecv,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	}
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	ctx := context.Background()
	var index int
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		index++
		fmt.Printf("%06d seq=%d type=%s ts_event=%d ts_recv=%d len=%d\n", index, header.Seq, eventTypeName(header.Type), header.TsEvent, header.TsRecv, len(payload))
		if *decode {
			printDecoded(header.Type, payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}
}

func eventTypeName(t schema.EventType) string {
	switch t {
	case schema.EventMarketObservation:
		return "MarketObservation"
	case schema.EventPersonaProposal:
		return "PersonaProposal"
	case schema.EventRegimeAssessment:
		return "RegimeAssessment"
	case schema.EventRouterUpdate:
		return "RouterUpdate"
	case schema.EventOverlayDecision:
		return "OverlayDecision"
	case schema.EventCommitRecord:
		return "CommitRecord"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

func printDecoded(t schema.EventType, payload []byte) {
	switch t {
	case schema.EventMarketObservation:
		obs, ok := codec.DecodeMarketObservation(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  symbol=%d price=%d vol=%.4f dd=%.4f depth=%.4f flow=%.4f\n",
			obs.SymbolID, obs.Price, obs.VolRealized.Float(), obs.Drawdown.Float(), obs.Depth.Float(), obs.FlowPressure.Float())
	case schema.EventPersonaProposal:
		p, ok := codec.DecodePersonaProposal(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  persona=%d symbol=%d delta=%d confidence=%.4f\n", p.PersonaID, p.SymbolID, p.Delta, p.Confidence.Float())
	case schema.EventRegimeAssessment:
		a, ok := codec.DecodeRegimeAssessment(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  band=%d regime=%d score=%.4f severity=%.4f max_lev=%.4f\n", a.Band, a.Regime, a.Score.Float(), a.Severity.Float(), a.MaxLeverage.Float())
	case schema.EventRouterUpdate:
		u, ok := codec.DecodeRouterUpdate(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  excluded=%d degrade=%d legs=%d load=%.4f\n", u.Excluded, u.DegradeMode, u.LegCount, u.Load.Float())
	case schema.EventOverlayDecision:
		d, ok := codec.DecodeOverlayDecision(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  decision=%d symbol=%d action=%d reason=%d proposed=%d cleared=%d cut=%.4f\n",
			d.DecisionID, d.SymbolID, d.Action, d.Reason, d.ProposedDelta, d.ClearedDelta, d.RiskCut.Float())
	case schema.EventCommitRecord:
		c, ok := codec.DecodeCommitRecord(payload)
		if !ok {
			fmt.Println("  <decode failed>")
			return
		}
		fmt.Printf("  decision=%d symbol=%d delta=%d exposure=%d hash=%s\n",
			c.DecisionID, c.SymbolID, c.Delta, c.NewExposure, hex.EncodeToString(c.RecordHash[:])[:12])
	}
}
