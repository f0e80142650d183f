package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"main/internal/bus"
	"main/internal/core"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/store"
	"main/internal/stress"
	"main/pkg/conn"
)

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	journalDir := flag.String("journal-dir", "testdata/journal", "Journal directory for recording")
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	tickCount := flag.Int("ticks", 200, "Number of market steps to run")
	tickInterval := flag.Duration("tick-interval", 0, "Delay between market steps")
	scenarioPath := flag.String("scenario", "", "Path to scripted scenario JSON")
	snapshotPath := flag.String("snapshot-path", "", "Exposure snapshot output (default: <journal-dir>/exposures.json)")
	recoverEnabled := flag.Bool("recover", false, "Recover exposures from snapshot + journal")
	recoverSnapshot := flag.String("recover-snapshot", "", "Snapshot path for recovery (default: <journal-dir>/exposures.json)")
	recoverPrefix := flag.String("recover-prefix", "", "Journal file prefix for recovery (default: decisions)")
	recoverNoChecksum := flag.Bool("recover-no-checksum", false, "Disable checksum validation for recovery")
	recoverMaxPayload := flag.Int("recover-max-payload", 0, "Max payload size in bytes for recovery (0=unlimited)")

	replayDir := flag.String("replay-dir", "", "Journal directory for replay mode")
	replayPrefix := flag.String("replay-prefix", "", "Journal file prefix (default: decisions)")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	replayUseRecv := flag.Bool("replay-use-recv-time", false, "Use receive timestamp for pacing")
	replayNoChecksum := flag.Bool("replay-no-checksum", false, "Disable checksum validation")
	replayMaxPayload := flag.Int("replay-max-payload", 0, "Max payload size in bytes (0=unlimited)")
	replaySnapshot := flag.String("replay-snapshot", "", "Snapshot path for replay verification (default: <replay-dir>/exposures.json)")
	replayVerifySnapshot := flag.Bool("replay-verify-snapshot", true, "Verify exposures against snapshot after replay")

	profileEnabled := flag.Bool("profile", false, "Enable continuous profiling")
	profileServer := flag.String("profile-server", "http://localhost:4040", "Profiling server address")
	flag.Parse()

	ctx := context.Background()

	if *profileEnabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "fde",
			ServerAddress:   *profileServer,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("profiler start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if *replayDir != "" {
		cfg := recorder.PlaybackConfig{
			Dir:             *replayDir,
			FilePrefix:      *replayPrefix,
			Speed:           *replaySpeed,
			UseRecvTime:     *replayUseRecv,
			DisableChecksum: *replayNoChecksum,
			MaxPayloadSize:  *replayMaxPayload,
		}
		snapshotIn := resolveSnapshotPath(*replayDir, *replaySnapshot)
		if err := runReplay(ctx, cfg, snapshotIn, *replayVerifySnapshot); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		return
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	runtime := newRuntimeConfig(loaded)
	if *configPath != "" && *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, runtime.Update)
	}

	snapshotOut := resolveSnapshotPath(*journalDir, *snapshotPath)
	var recoverCfg *state.RecoverConfig
	if *recoverEnabled {
		recoverPath := resolveSnapshotPath(*journalDir, *recoverSnapshot)
		recoverCfg = &state.RecoverConfig{
			WALDir:          *journalDir,
			SnapshotPath:    recoverPath,
			FilePrefix:      *recoverPrefix,
			DisableChecksum: *recoverNoChecksum,
			MaxPayloadSize:  *recoverMaxPayload,
		}
	}
	if err := runRecord(ctx, *journalDir, runtime, *tickCount, *tickInterval, *scenarioPath, snapshotOut, recoverCfg); err != nil {
		log.Fatalf("record failed: %v", err)
	}
}

func runRecord(ctx context.Context, dir string, runtime *runtimeConfig, tickCount int, tickInterval time.Duration, scenarioPath, snapshotPath string, recoverCfg *state.RecoverConfig) error {
	if tickCount <= 0 {
		return fmt.Errorf("ticks must be > 0")
	}
	loaded := runtime.Load()

	var journal *recorder.Writer
	if loaded.Features.EnableJournal {
		w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		journal = w
	}

	metrics := obs.NewMetrics()
	traceGen := obs.NewTraceGenerator(0)
	queue := bus.NewQueue(4096)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var appendErr error
		queue.Run(groupCtx, func(e bus.Event) {
			if journal == nil {
				return
			}
			if err := journal.TryAppend(e.Header, e.Payload); err != nil && appendErr == nil {
				appendErr = err
			}
		})
		return appendErr
	})

	engine, err := core.NewEngine(loaded, queue, metrics, traceGen)
	if err != nil {
		return err
	}
	if recoverCfg != nil {
		recovered, err := state.RecoverExposures(ctx, *recoverCfg)
		if err != nil {
			return err
		}
		engine.Restore(recovered)
		logs.Infof("recovered exposures=%d last_seq=%d chain_tip=%s",
			recovered.Exposures.Count(), recovered.LastSeq, shortHash(recovered.ChainTip))
	}

	generator, err := feed.NewGenerator(loaded.Registry, loaded.Feed)
	if err != nil {
		return err
	}
	var scenario feed.Scenario
	hasScenario := false
	if scenarioPath != "" {
		scenario, err = feed.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		hasScenario = true
		logs.Infof("scenario loaded: %s, phases=%d, steps=%d", scenario.Name, len(scenario.Phases), scenario.TotalSteps())
	}

	var injector *stress.Injector
	if loaded.Features.EnableStress {
		injector, err = stress.NewInjector(loaded.Stress)
		if err != nil {
			return err
		}
	}

	runErr := runSteps(ctx, engine, queue, generator, injector, runtime, scenario, hasScenario, tickCount, tickInterval)

	queue.Close()
	appendErr := group.Wait()

	if journal != nil {
		if err := journal.Close(); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if appendErr != nil {
		return appendErr
	}

	if snapshotPath != "" {
		snapshot := engine.Exposures().SnapshotWithMeta(engine.Seq(), engine.LastEventTs(), engine.ChainTip())
		if err := state.WriteSnapshot(snapshotPath, snapshot); err != nil {
			return err
		}
	}
	if err := persistAuthorityChain(runtime.Load(), engine); err != nil {
		logs.Errorf("authority chain persistence failed: %+v", err)
	}

	snap := metrics.Snapshot()
	logs.Infof("metrics: events=%v bands=%v actions=%v reasons=%v persona_errors=%d drops=%d pipeline=%+v persona_eval=%+v",
		snap.EventCounts, snap.BandCounts, snap.OverlayActionCounts, snap.OverlayReasonCounts,
		snap.PersonaErrors, snap.QueueDrops, snap.PipelineLatency, snap.PersonaLatency)
	logs.Infof("ledger: decisions=%d open=%d chain_len=%d chain_tip=%s",
		engine.Decisions().Len(), engine.Decisions().Open(), len(engine.AuthorityRecords()), shortHash(engine.ChainTip()))
	return nil
}

func runSteps(ctx context.Context, engine *core.Engine, queue *bus.Queue, generator *feed.Generator, injector *stress.Injector, runtime *runtimeConfig, scenario feed.Scenario, hasScenario bool, tickCount int, tickInterval time.Duration) error {
	for i := 0; i < tickCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sys.Shutdown():
			logs.Info("shutdown signal received, stopping run")
			return nil
		default:
		}

		loaded := runtime.Load()
		engine.SetKillSwitch(loaded.Overlay.KillSwitch)

		if hasScenario {
			phase, _ := scenario.PhaseAt(i)
			generator.SetPhase(phase)
		}
		if injector != nil {
			injector.Advance()
		}

		now := time.Now().UTC()
		raws := generator.Next(now)
		if injector != nil {
			for j := range raws {
				raws[j] = injector.Process(raws[j])
			}
		}

		result, err := engine.Step(now, raws)
		if err != nil {
			return err
		}
		if i%50 == 0 || result.Guardian.Regime == schema.RegimeCrash || result.Degraded {
			logs.Infof("step=%d band=%d regime=%d score=%.2f severity=%.2f profile=%s guardian_weight=%.2f load=%.2f decisions=%d committed=%d queue_depth=%d",
				i, result.Assessment.Band, result.Guardian.Regime, result.Assessment.Score, result.Guardian.Severity,
				result.Profile.Regime, result.GuardianWeight, result.RouterLoad, len(result.Decisions), result.Committed, queue.Len())
		}

		if tickInterval > 0 && i < tickCount-1 {
			time.Sleep(tickInterval)
		}
	}
	return nil
}

func runReplay(ctx context.Context, cfg recorder.PlaybackConfig, snapshotPath string, verifySnapshot bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := bus.NewQueue(4096)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	replayer := core.NewReplayer()

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			if err := replayer.Apply(e); err != nil {
				select {
				case errCh <- err:
				default:
				}
				cancel()
			}
		})
	}()

	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return err
	}
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		var copied []byte
		if len(payload) > 0 {
			copied = make([]byte, len(payload))
			copy(copied, payload)
		}
		return queue.TryPublish(bus.Event{Header: header, Payload: copied})
	})

	queue.Close()
	wg.Wait()

	if err != nil {
		return err
	}
	var applyErr error
	select {
	case applyErr = <-errCh:
	default:
	}
	if applyErr != nil {
		return applyErr
	}
	if verifySnapshot {
		if snapshotPath == "" {
			return fmt.Errorf("snapshot path is empty")
		}
		expected, err := state.ReadSnapshot(snapshotPath)
		if err != nil {
			return err
		}
		actual := replayer.Exposures().Snapshot()
		if err := state.CompareSnapshots(expected, actual); err != nil {
			return err
		}
		logs.Infof("snapshot verified: exposures=%d", len(actual.Exposures))
	}
	logs.Infof("replay completed: total=%d counts=%v decisions=%d open=%d",
		replayer.Total(), replayer.Counts(), replayer.Decisions().Len(), replayer.Decisions().Open())
	return nil
}

func persistAuthorityChain(loaded ops.Loaded, engine *core.Engine) error {
	if !loaded.Features.EnableStore || loaded.StoreDSN == "" {
		return nil
	}
	records := engine.AuthorityRecords()
	if len(records) == 0 {
		return nil
	}
	client, err := conn.New(conn.Option{ConnString: loaded.StoreDSN})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	s, err := store.New(client)
	if err != nil {
		return err
	}
	if err := s.SaveRecords(records, 0); err != nil {
		return err
	}
	logs.Infof("authority chain persisted: run=%s records=%d", s.RunID(), len(records))
	return nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default(), nil
	}
	return ops.Load(path)
}

func resolveSnapshotPath(dir string, path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, "exposures.json")
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("config stat failed: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				logs.Errorf("config reload failed: %+v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
