package pipeline

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/Arham-Git047/Project-Sentinel/internal/alert"
	"github.com/Arham-Git047/Project-Sentinel/internal/config"
	"github.com/Arham-Git047/Project-Sentinel/internal/consensus"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/model"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
	"github.com/Arham-Git047/Project-Sentinel/internal/zone"
)

// Deps are the runtime collaborators Assemble does not build itself.
type Deps struct {
	Clock    clockwork.Clock
	Emitter  Emitter
	Resolver domain.ZoneResolver
	Store    alert.Store // optional
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Assemble builds the evaluation stack described by cfg. The alert manager
// is returned alongside the engine for journal restore and pruning.
func Assemble(cfg *config.Config, d Deps) (*Engine, *alert.Manager, error) {
	playbook := domain.DefaultPlaybook()
	if cfg.PlaybookFile != "" {
		var err error
		if playbook, err = domain.LoadPlaybook(cfg.PlaybookFile); err != nil {
			return nil, nil, err
		}
	}

	opts := model.DefaultOptions()
	opts.MinHistory = cfg.MinHistory
	opts.MinForecastHistory = cfg.MinForecastHistory
	bank, err := model.NewBank(cfg.ModelWeights,
		model.WithOptions(opts),
		model.WithHistorySize(cfg.HistorySize),
		model.WithLogger(d.Logger),
		model.WithMetrics(d.Metrics),
	)
	if err != nil {
		return nil, nil, err
	}

	voter, err := consensus.NewVoter(cfg.QuorumFraction, bank.Size(), bank.TotalWeight())
	if err != nil {
		return nil, nil, err
	}

	correlator, err := zone.NewCorrelator(cfg.CorrelationWindow, cfg.Severity)
	if err != nil {
		return nil, nil, err
	}

	managerOpts := []alert.Option{
		alert.WithClock(d.Clock),
		alert.WithLogger(d.Logger),
		alert.WithMetrics(d.Metrics),
	}
	if d.Store != nil {
		managerOpts = append(managerOpts, alert.WithStore(d.Store))
	}
	alerts, err := alert.NewManager(alert.Config{
		ResolutionTimeout: cfg.ResolutionTimeout,
		NotifyOnResolve:   cfg.NotifyOnResolve,
		Playbook:          playbook,
	}, managerOpts...)
	if err != nil {
		return nil, nil, err
	}

	engine, err := NewEngine(Components{
		Buffer:     NewBuffer(cfg.BufferCapacity),
		Bank:       bank,
		Voter:      voter,
		Correlator: correlator,
		Alerts:     alerts,
		Emitter:    d.Emitter,
		Resolver:   d.Resolver,
	}, cfg.EvalInterval, d.Clock, d.Logger, d.Metrics)
	if err != nil {
		return nil, nil, err
	}
	return engine, alerts, nil
}
