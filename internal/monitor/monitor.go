package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockwatch/internal/core"
	"stockwatch/internal/detect"
	"stockwatch/internal/dom"
	"stockwatch/internal/fetch"
	"stockwatch/internal/fingerprint"
	"stockwatch/internal/logger"
	"stockwatch/internal/messaging"
	"stockwatch/internal/store"
)

// SaveTimeout bounds the state write that follows a notify attempt.
const SaveTimeout = 10 * time.Second

// Phase is the coordinator's position within one pass.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetched    Phase = "fetched"
	PhaseClassified Phase = "classified"
	PhaseSuppressed Phase = "suppressed"
	PhaseNotified   Phase = "notified"
)

// Fetcher retrieves the markup of one URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Notifier delivers one alert message
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Store persists the de-duplication record
type Store interface {
	Load(ctx context.Context) (core.State, error)
	Save(ctx context.Context, state core.State) error
}

// Config controls one coordinator
type Config struct {
	Targets  []core.Target
	Platform messaging.MessagePlatform // Selects the alert text flavour
	DryRun   bool                      // Classify and fingerprint only
}

// Deps are the coordinator's collaborators
type Deps struct {
	Fetcher  Fetcher
	Notifier Notifier // May be nil for a dry run
	Store    Store
	Now      func() time.Time
}

// FetchFailure records a URL that produced no verdict.
type FetchFailure struct {
	Target string
	URL    string
	Err    error
}

// Outcome summarizes one pass
type Outcome struct {
	RunID        string
	Phase        Phase        // Final phase reached
	Verdict      core.Verdict // Positive verdict, or the last negative one
	Fingerprint  string       // Set only for a positive verdict
	PreviousHash string       // last_hash as loaded, empty when absent or corrupt
	Delivered    bool
	StateSaved   bool
	DryRun       bool
	FetchErrors  []FetchFailure
	DeliveryErr  error
	StateErr     error // Load or save failure, never fatal
	Err          error // Context cancellation stopping the scan
	StartedAt    time.Time
	Duration     time.Duration
}

// Positive reports whether the pass found a purchasable signal
func (o Outcome) Positive() bool {
	return o.Verdict.Purchasable
}

// Monitor runs monitoring passes over a fixed set of targets.
type Monitor struct {
	cfg         Config
	deps        Deps
	classifiers []*detect.Classifier
}

// New validates the collaborators and compiles a classifier per target.
func New(cfg Config, deps Deps) (*Monitor, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("monitor: no targets configured")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("monitor: fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("monitor: state store is required")
	}
	if deps.Notifier == nil && !cfg.DryRun {
		return nil, errors.New("monitor: notifier is required unless dry-run")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Platform == "" {
		cfg.Platform = messaging.PlatformDiscord
	}

	classifiers := make([]*detect.Classifier, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		c, err := detect.New(t)
		if err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
		classifiers = append(classifiers, c)
	}

	return &Monitor{cfg: cfg, deps: deps, classifiers: classifiers}, nil
}

// Run performs one pass: load state, scan targets in order until the first
// positive page, then suppress or notify. State is written after a delivery
// attempt whether or not it succeeded.
func (m *Monitor) Run(ctx context.Context) (out Outcome) {
	out = Outcome{
		RunID:     uuid.NewString(),
		Phase:     PhaseIdle,
		DryRun:    m.cfg.DryRun,
		StartedAt: m.deps.Now().UTC(),
	}
	log := logger.With("run_id", out.RunID)
	defer func() {
		out.Duration = m.deps.Now().Sub(out.StartedAt)
	}()

	log.Debug().Int("targets", len(m.classifiers)).Bool("dry_run", m.cfg.DryRun).Msg("Starting monitoring pass")

	prev, err := m.deps.Store.Load(ctx)
	if err != nil {
		out.StateErr = err
		event := log.Warn().Err(err)
		if errors.Is(err, store.ErrCorruptState) {
			event = event.Bool("corrupt", true)
		}
		event.Msg("Could not read state, treating as first run")
		prev = core.State{}
	}
	out.PreviousHash = prev.LastHash

	verdict, pageText, found := m.scan(ctx, &out, &log)
	out.Verdict = verdict
	if !found {
		out.Phase = PhaseIdle
		log.Info().
			Int("fetch_errors", len(out.FetchErrors)).
			Msg("No purchasable signal")
		return out
	}

	out.Fingerprint = fingerprint.Of(pageText)
	evtLog := log.With().
		Str("target", verdict.Target).
		Str("url", verdict.URL).
		Str("fingerprint", out.Fingerprint).
		Logger()
	if e := verdict.Evidence; e != nil {
		evtLog = evtLog.With().Str("pool", e.Pool).Str("phrase", e.Phrase).Logger()
	}

	if prev.Present() && prev.LastHash == out.Fingerprint {
		out.Phase = PhaseSuppressed
		evtLog.Info().Msg("Purchasable signal unchanged since last alert, suppressing")
		return out
	}

	if m.cfg.DryRun {
		evtLog.Info().Str("previous_hash", prev.LastHash).Msg("Dry run: purchasable signal would be alerted")
		return out
	}

	now := m.deps.Now()
	msg := messaging.FormatAlert(m.cfg.Platform, verdict, now)
	if err := m.deps.Notifier.Notify(ctx, msg); err != nil {
		out.DeliveryErr = err
		evtLog.Error().Err(err).Msg("Failed to deliver alert")
	} else {
		out.Delivered = true
		evtLog.Info().Msg("Alert delivered")
	}

	// Written even when delivery failed: one alert attempt per page state.
	// Cancellation of the pass no longer applies once a notify was attempted.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SaveTimeout)
	defer cancel()
	if err := m.deps.Store.Save(saveCtx, core.State{LastHash: out.Fingerprint, UpdatedAt: now.UTC()}); err != nil {
		out.StateErr = err
		evtLog.Error().Err(err).Msg("Failed to save state")
	} else {
		out.StateSaved = true
	}

	out.Phase = PhaseNotified
	return out
}

// scan visits every target URL in order and stops at the first positive
// verdict. Fetch and parse failures count as no verdict.
func (m *Monitor) scan(ctx context.Context, out *Outcome, log *zerolog.Logger) (core.Verdict, string, bool) {
	var last core.Verdict
	for _, c := range m.classifiers {
		target := c.Target()
		for _, url := range target.URLs {
			if err := ctx.Err(); err != nil {
				out.Err = err
				log.Warn().Err(err).Msg("Monitoring pass cancelled")
				return last, "", false
			}

			page, err := m.deps.Fetcher.Fetch(ctx, url)
			if err != nil {
				out.FetchErrors = append(out.FetchErrors, FetchFailure{Target: target.Name, URL: url, Err: err})
				var statusErr *fetch.StatusError
				event := log.Warn().Err(err).Str("target", target.Name).Str("url", url)
				if errors.As(err, &statusErr) {
					event = event.Int("status", statusErr.StatusCode)
				}
				event.Msg("Fetch failed, no verdict for URL")
				continue
			}
			out.Phase = PhaseFetched

			doc, err := dom.ParseString(page.HTML)
			if err != nil {
				out.FetchErrors = append(out.FetchErrors, FetchFailure{Target: target.Name, URL: url, Err: err})
				log.Warn().Err(err).Str("target", target.Name).Str("url", url).Msg("Could not parse page, no verdict for URL")
				continue
			}

			verdict := c.Classify(doc, url)
			out.Phase = PhaseClassified
			last = verdict
			log.Debug().
				Str("target", target.Name).
				Str("url", url).
				Bool("purchasable", verdict.Purchasable).
				Msg("Classified page")

			if verdict.Purchasable {
				return verdict, doc.Text(), true
			}
		}
	}
	return last, "", false
}
