package codec

import (
	"testing"

	"main/internal/schema"
)

func TestMarketObservationRoundTrip(t *testing.T) {
	orig := schema.MarketObservation{
		SymbolID:     42,
		Flags:        1,
		Price:        10_150_000,
		VolRealized:  schema.RatioFromFloat(0.22),
		VolTrend:     schema.RatioFromFloat(-0.05),
		Depth:        schema.RatioFromFloat(0.8),
		Spread:       schema.RatioFromFloat(0.0004),
		FlowPressure: schema.RatioFromFloat(-0.7),
		Drawdown:     schema.RatioFromFloat(0.12),
		TailRisk:     schema.RatioFromFloat(0.3),
	}

	encoded := EncodeMarketObservation(nil, orig)
	if len(encoded) != MarketObservationPayloadSize {
		t.Fatalf("payload size mismatch: got %d want %d", len(encoded), MarketObservationPayloadSize)
	}
	decoded, ok := DecodeMarketObservation(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("observation round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestCommitRecordRoundTripKeepsHashes(t *testing.T) {
	orig := schema.CommitRecord{
		DecisionID:  7,
		SymbolID:    3,
		Delta:       -250_000,
		NewExposure: 750_000,
	}
	for i := range orig.PrevHash {
		orig.PrevHash[i] = byte(i)
		orig.RecordHash[i] = byte(255 - i)
	}

	encoded := EncodeCommitRecord(nil, orig)
	decoded, ok := DecodeCommitRecord(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("commit round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestOverlayDecisionRoundTrip(t *testing.T) {
	orig := schema.OverlayDecision{
		DecisionID:     9,
		SymbolID:       2,
		Action:         schema.OverlayActionTrim,
		Reason:         schema.OverlayReasonRiskBand,
		ProposedDelta:  1_000_000,
		ClearedDelta:   350_000,
		RiskCut:        schema.RatioFromFloat(0.65),
		ViolationScore: schema.RatioFromFloat(0.5),
	}

	encoded := EncodeOverlayDecision(nil, orig)
	decoded, ok := DecodeOverlayDecision(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("overlay round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestRouterUpdateRoundTripKeepsLegs(t *testing.T) {
	orig := schema.RouterUpdate{
		Excluded:    1,
		DegradeMode: 1,
		LegCount:    2,
		Load:        schema.RatioFromFloat(1.25),
	}
	orig.Legs[0] = schema.RouterLeg{PersonaID: 1, Weight: 0}
	orig.Legs[1] = schema.RouterLeg{PersonaID: 2, Weight: schema.RatioFromFloat(0.6)}

	encoded := EncodeRouterUpdate(nil, orig)
	decoded, ok := DecodeRouterUpdate(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("router round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, ok := DecodeMarketObservation(make([]byte, MarketObservationPayloadSize-1)); ok {
		t.Fatal("short observation buffer should fail")
	}
	if _, ok := DecodeCommitRecord(make([]byte, CommitRecordPayloadSize-1)); ok {
		t.Fatal("short commit buffer should fail")
	}
	if _, ok := DecodePersonaProposal(nil); ok {
		t.Fatal("nil proposal buffer should fail")
	}
}

func TestEncodeReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, MarketObservationPayloadSize)
	encoded := EncodeMarketObservation(buf, schema.MarketObservation{SymbolID: 1})
	if &encoded[0] != &buf[:1][0] {
		t.Fatal("encode should reuse the provided buffer")
	}
}
