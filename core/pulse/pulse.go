// Package pulse implements the periodic metabolism loop: dispatching
// triggered signals, sweeping for stagnant entities, and re-evaluating
// auto-resolving signals.
//
// Every pulse records its outcome summary unconditionally, the way a
// gas-metered dispatcher always finalizes accounting regardless of
// handler success.
package pulse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"chora/core/engine"
	"chora/core/errkind"
	"chora/core/graph"
	"chora/core/store"
)

// Config is the pulse loop's runtime configuration.
type Config struct {
	Enabled         bool
	IntervalSeconds int
}

// Summary is one pulse's outcome record, retained in a bounded ring buffer.
type Summary struct {
	Ts               time.Time
	SignalsProcessed int
	Errors           int
	DurationMs       int64
	Preview          bool
}

const (
	defaultInquiryStagnationDays = 30
	defaultSignalStagnationDays  = 7
	historyCap                   = 100
)

// Pulse is the injectable metabolism loop collaborator: no package-level
// singleton, constructed with the Store and Engine it drives.
type Pulse struct {
	Store  *store.Store
	Engine *engine.Engine
	Clock  clock.Clock
	Config Config
	Log    *logrus.Logger

	running atomic.Bool

	historyMu sync.Mutex
	history   []Summary
}

// New constructs a Pulse. clk defaults to the real clock when nil. The
// in-memory history ring is seeded from the store's persisted
// pulse_history table, so a daemon restart resumes with the history it
// had before, not an empty one.
func New(s *store.Store, eng *engine.Engine, cfg Config, clk clock.Clock, log *logrus.Logger) *Pulse {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pulse{Store: s, Engine: eng, Config: cfg, Clock: clk, Log: log}
	if persisted, err := s.ListPulseHistory(historyCap); err == nil {
		for _, ph := range persisted {
			p.history = append(p.history, Summary{
				Ts: ph.Ts, SignalsProcessed: ph.SignalsProcessed, Errors: ph.Errors, DurationMs: ph.DurationMs,
			})
		}
	}
	return p
}

// Run drives the pulse loop on the configured interval until ctx is
// cancelled. It is a no-op if Config.Enabled is false.
func (p *Pulse) Run(ctx context.Context) {
	if !p.Config.Enabled {
		return
	}
	interval := time.Duration(p.Config.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := p.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline, cancel := context.WithTimeout(ctx, interval)
			p.Tick(deadline, false)
			cancel()
		}
	}
}

// Tick runs exactly one pulse. If a previous tick is still running, this
// tick is skipped and the skip is logged. preview, when true, performs
// candidate expansion but no writes.
func (p *Pulse) Tick(ctx context.Context, preview bool) Summary {
	if !p.running.CompareAndSwap(false, true) {
		p.Log.Warn("pulse: previous tick still running, skipping")
		return Summary{Ts: p.Clock.Now(), Preview: preview}
	}
	defer p.running.Store(false)

	start := p.Clock.Now()
	sum := Summary{Ts: start, Preview: preview}

	processed, errs := p.dispatchTriggeredSignals(ctx, preview)
	sum.SignalsProcessed += processed
	sum.Errors += errs

	if !preview {
		if err := p.stagnationSweep(); err != nil {
			p.Log.WithError(err).Warn("pulse: stagnation sweep failed")
			sum.Errors++
		}
		if err := p.autoResolutionSweep(); err != nil {
			p.Log.WithError(err).Warn("pulse: auto-resolution sweep failed")
			sum.Errors++
		}
	}

	sum.DurationMs = p.Clock.Now().Sub(start).Milliseconds()
	p.recordSummary(sum)
	if !preview {
		ph := store.PulseSummary{Ts: sum.Ts, SignalsProcessed: sum.SignalsProcessed, Errors: sum.Errors, DurationMs: sum.DurationMs}
		if err := p.Store.SavePulseSummary(ph, historyCap); err != nil {
			p.Log.WithError(err).Warn("pulse: persist history failed")
		}
	}
	return sum
}

// dispatchTriggeredSignals finds active signals with a `triggers` bond to
// a protocol; each is dispatched, and its outcome recorded on the signal
// entity.
func (p *Pulse) dispatchTriggeredSignals(ctx context.Context, preview bool) (processed int, errs int) {
	bonds, err := p.Store.QueryBondsByVerb("triggers")
	if err != nil {
		p.Log.WithError(err).Warn("pulse: query triggers bonds failed")
		return 0, 1
	}

	for _, b := range bonds {
		signal, err := p.Store.GetEntity(b.FromID)
		if err != nil || signal.Type != graph.TypeSignal || signal.Status != graph.StatusActive {
			continue
		}
		target, err := p.Store.GetEntity(b.ToID)
		if err != nil || target.Type != graph.TypeProtocol {
			continue // triggers may also point at a focus entity; not a dispatch candidate
		}
		processed++
		if preview {
			continue
		}

		inputs := map[string]any{"signal_id": signal.ID}
		for k, v := range signal.Data {
			inputs[k] = v
		}

		callStart := p.Clock.Now()
		res := p.Engine.Dispatch(ctx, target.ID, inputs, nil, "", 0)
		durationMs := p.Clock.Now().Sub(callStart).Milliseconds()

		if err := p.recordOutcome(signal, target.ID, callStart, durationMs, res); err != nil {
			p.Log.WithError(err).Warn("pulse: record outcome failed")
			errs++
			continue
		}
		if !res.OK {
			errs++
		}
	}
	return processed, errs
}

func (p *Pulse) recordOutcome(signal graph.Entity, protocolID string, startedAt time.Time, durationMs int64, res engine.Result) error {
	signal.Data["outcome_data"] = outcomeData(protocolID, durationMs, res)

	outcome := store.SignalOutcome{
		SignalID:   signal.ID,
		ProtocolID: protocolID,
		StartedAt:  startedAt,
		EndedAt:    startedAt.Add(time.Duration(durationMs) * time.Millisecond),
		DurationMs: durationMs,
	}
	if res.OK {
		signal.Status = graph.StatusResolved
		outcome.Status = "resolved"
	} else {
		signal.Status = graph.StatusFailed
		outcome.Status = "failed"
		outcome.Error = res.ErrorMessage
	}
	if err := p.Store.SaveSignalOutcome(outcome); err != nil {
		return err
	}

	_, err := p.Store.SaveEntity(signal)
	return err
}

func outcomeData(protocolID string, durationMs int64, res engine.Result) map[string]any {
	if res.OK {
		return map[string]any{"protocol_id": protocolID, "duration_ms": durationMs, "payload": res.Data}
	}
	return map[string]any{
		"protocol_id": protocolID, "duration_ms": durationMs,
		"error": map[string]any{"kind": res.ErrorKind, "message": res.ErrorMessage},
	}
}

// stagnationSweep looks for principle entities named
// "principle-<kind>-stagnates-after-<N>-days" override the default TTLs for
// inquiry (30d) and signal (7d); entities of the referenced kind last
// updated before the TTL get an escalation signal (deduplicated by
// source_id so repeated pulses don't pile up duplicates).
func (p *Pulse) stagnationSweep() error {
	ttlDays := map[graph.EntityType]int{
		graph.TypeInquiry: defaultInquiryStagnationDays,
		graph.TypeSignal:  defaultSignalStagnationDays,
	}

	principles, err := p.Store.QueryEntities(store.Filter{Type: graph.TypePrinciple})
	if err != nil {
		return err
	}
	for _, pr := range principles {
		kind, days, ok := parseStagnationPrinciple(pr.ID)
		if ok {
			ttlDays[kind] = days
		}
	}

	now := p.Clock.Now()
	for kind, days := range ttlDays {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		stale, err := p.Store.QueryEntities(store.Filter{Type: kind, Status: graph.StatusActive})
		if err != nil {
			return err
		}
		for _, e := range stale {
			if e.UpdatedAt.After(cutoff) {
				continue
			}
			if err := p.emitStagnationSignal(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pulse) emitStagnationSignal(e graph.Entity) error {
	existing, err := p.Store.QueryEntities(store.Filter{
		Type:       graph.TypeSignal,
		DataEquals: map[string]any{"source_id": e.ID, "category": "stagnation"},
	})
	if err != nil {
		return err
	}
	for _, s := range existing {
		if s.Status == graph.StatusActive {
			return nil // already escalated, do not duplicate
		}
	}

	id := "signal-stagnation-" + e.ID
	_, err = p.Store.SaveEntity(graph.Entity{
		ID: id, Type: graph.TypeSignal, Status: graph.StatusActive,
		Data: map[string]any{
			"title":     fmt.Sprintf("%s %s has stagnated", e.Type, e.ID),
			"source_id": e.ID,
			"category":  "stagnation",
			"urgency":   "normal",
		},
	})
	return err
}

func parseStagnationPrinciple(id string) (kind graph.EntityType, days int, ok bool) {
	const prefix = "principle-"
	const mid = "-stagnates-after-"
	const suffix = "-days"

	rest, found := strings.CutPrefix(id, prefix)
	if !found {
		return "", 0, false
	}
	midIdx := strings.Index(rest, mid)
	if midIdx < 0 {
		return "", 0, false
	}
	kindStr := rest[:midIdx]
	tail := rest[midIdx+len(mid):]
	numStr, found := strings.CutSuffix(tail, suffix)
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, false
	}
	return graph.EntityType(kindStr), n, true
}

// autoResolutionSweep re-evaluates a signal carrying a
// `tracks` reference and a `resolves-when` predicate is re-evaluated each
// pulse; once its condition clears, it resolves with the clearing cause
// recorded.
func (p *Pulse) autoResolutionSweep() error {
	signals, err := p.Store.QueryEntities(store.Filter{Type: graph.TypeSignal, Status: graph.StatusActive})
	if err != nil {
		return err
	}
	for _, s := range signals {
		tracked, _ := s.Data["tracks"].(string)
		cond, _ := s.Data["resolves-when"].(string)
		if tracked == "" || cond == "" {
			continue
		}
		cleared, err := p.evalResolvesWhen(tracked, cond)
		if err != nil {
			continue
		}
		if !cleared {
			continue
		}
		s.Status = graph.StatusResolved
		s.Data["auto-resolved"] = cond
		if _, err := p.Store.SaveEntity(s); err != nil {
			return err
		}
	}
	return nil
}

// evalResolvesWhen checks one of the three closed resolution predicates:
// void-cleared, bond-added, entity-updated.
func (p *Pulse) evalResolvesWhen(trackedID, cond string) (bool, error) {
	tracked, err := p.Store.GetEntity(trackedID)
	if err != nil {
		return false, errkind.New(errkind.NotFound, "tracked entity "+trackedID+" not found")
	}
	switch cond {
	case "void-cleared":
		v, ok := tracked.Data["void"]
		return !ok || v == nil || v == "", nil
	case "bond-added":
		cons, err := p.Store.GetConstellation(trackedID)
		if err != nil {
			return false, err
		}
		return len(cons) > 0, nil
	case "entity-updated":
		return tracked.UpdatedAt.After(tracked.CreatedAt), nil
	default:
		return false, nil
	}
}

func (p *Pulse) recordSummary(s Summary) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()
	p.history = append(p.history, s)
	if len(p.history) > historyCap {
		p.history = p.history[len(p.history)-historyCap:]
	}
}

// History returns up to the last n recorded pulse summaries, most recent
// last.
func (p *Pulse) History(n int) []Summary {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()
	if n <= 0 || n > len(p.history) {
		n = len(p.history)
	}
	return append([]Summary(nil), p.history[len(p.history)-n:]...)
}
