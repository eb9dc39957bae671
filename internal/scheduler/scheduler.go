// Package scheduler drives the day loop of a two-farm competition: it
// collects one action per farm, resolves them in a fixed order, sweeps
// expired orders, advances the day and emits a snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xtrntr/farmduel/internal/actions"
	"github.com/xtrntr/farmduel/internal/exchange"
	"github.com/xtrntr/farmduel/internal/farm"
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

// State is the scheduler run state
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Source produces one action per farm per day. Errors are logged and the
// returned action is used anyway; a failing source should return
// Maintenance.
type Source interface {
	Decide(ctx context.Context, self, rival models.FarmView, daysLeft int) (models.Action, error)
}

// Recorder observes game events, e.g. metrics
type Recorder interface {
	RecordTurn(day int)
	RecordAction(farmID string, entry models.LogEntry)
	RecordTrade(trade models.Trade)
	RecordFarm(f *farm.Farm)
}

// Player binds a farm to its decision source
type Player struct {
	ID     string
	Source Source
}

// Config holds the scheduler dependencies
type Config struct {
	Rules    *rules.Rules
	Players  [2]Player
	Rand     actions.Rand
	Logger   *slog.Logger
	Recorder Recorder
	// TurnInterval paces turns for streaming clients; zero means no pacing.
	TurnInterval rate.Limit
}

// Scheduler owns both farms for the whole competition
type Scheduler struct {
	rules    *rules.Rules
	players  [2]Player
	farms    [2]*farm.Farm
	engine   *exchange.Engine
	resolver *actions.Resolver
	logger   *slog.Logger
	recorder Recorder
	limiter  *rate.Limiter

	mu    sync.Mutex
	state State
	stop  chan struct{}

	// guards farms and the order book against readers outside the loop
	stateMu sync.RWMutex
}

// New creates a scheduler with both farms at day 1
func New(cfg Config) (*Scheduler, error) {
	if cfg.Rules == nil {
		return nil, errors.New("rules are required")
	}
	if cfg.Rand == nil {
		return nil, errors.New("random source is required")
	}
	for i, p := range cfg.Players {
		if p.ID == "" || p.Source == nil {
			return nil, fmt.Errorf("player %d needs an id and a decision source", i)
		}
	}
	if cfg.Players[0].ID == cfg.Players[1].ID {
		return nil, fmt.Errorf("player ids must differ, both are %q", cfg.Players[0].ID)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.TurnInterval
	if limit == 0 {
		limit = rate.Inf
	}

	engine := exchange.NewEngine(cfg.Rules)
	s := &Scheduler{
		rules:    cfg.Rules,
		players:  cfg.Players,
		engine:   engine,
		resolver: actions.NewResolver(cfg.Rules, engine, cfg.Rand),
		logger:   logger,
		recorder: cfg.Recorder,
		limiter:  rate.NewLimiter(limit, 1),
		stop:     make(chan struct{}),
	}
	for i, p := range cfg.Players {
		s.farms[i] = farm.New(p.ID, cfg.Rules)
	}
	return s, nil
}

// State returns the current run state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop asks the loop to finish at the next turn boundary
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.state = Stopping
		close(s.stop)
	}
}

// OrderBook returns a copy of the shared order book
func (s *Scheduler) OrderBook() (buys, sells []models.Order) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.engine.Book.GetOrderBook()
}

// Run plays the competition, calling emit once per day and once with the
// final snapshot. Cancelling ctx or calling Stop ends the loop at a turn
// boundary; order books are still cleared and the final snapshot emitted.
// An error from emit stops the loop the same way and is returned.
func (s *Scheduler) Run(ctx context.Context, emit func(models.Snapshot) error) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return models.ErrCompetitionRunning
	}
	s.state = Running
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var runErr error
	for day := 1; day <= s.rules.TotalDays; day++ {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		snap, err := s.playDay(ctx, day)
		if err != nil {
			break
		}
		if err := emit(snap); err != nil {
			runErr = fmt.Errorf("emit day %d: %w", day, err)
			break
		}
	}

	final := s.finish()
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()

	if runErr != nil {
		return runErr
	}
	if err := emit(final); err != nil {
		return fmt.Errorf("emit final snapshot: %w", err)
	}
	return nil
}

// decide asks both sources in parallel; state is not touched meanwhile
func (s *Scheduler) decide(ctx context.Context, daysLeft int) ([2]models.Action, error) {
	views := s.Farms()

	var choices [2]models.Action
	g, gctx := errgroup.WithContext(ctx)
	for i := range s.players {
		g.Go(func() error {
			a, err := s.players[i].Source.Decide(gctx, views[i], views[1-i], daysLeft)
			if err != nil {
				s.logger.Warn("decision source failed, using maintenance",
					"farm", s.players[i].ID, "day", views[i].Day, "error", err)
				a = models.Action{Kind: models.Maintenance}
			}
			choices[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return choices, err
	}
	return choices, ctx.Err()
}

func (s *Scheduler) playDay(ctx context.Context, day int) (models.Snapshot, error) {
	s.logger.Debug("turn started", "day", day)
	if s.recorder != nil {
		s.recorder.RecordTurn(day)
	}

	choices, err := s.decide(ctx, s.rules.TotalDays-day+1)
	if err != nil {
		return models.Snapshot{}, err
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	logs := map[string][]models.LogEntry{}
	for i, f := range s.farms {
		rival := s.farms[1-i]
		for _, entry := range s.resolver.Resolve(f, rival, choices[i]) {
			logs[entry.Farm] = append(logs[entry.Farm], entry)
		}
	}
	for i, f := range s.farms {
		for _, entry := range s.engine.SweepExpired(f, s.farms[1-i]) {
			logs[entry.Farm] = append(logs[entry.Farm], entry)
		}
	}
	trades := s.engine.DrainTrades()

	snap := models.Snapshot{Day: day, Farms: map[string]models.FarmSnapshot{}, Trades: trades}
	for i, f := range s.farms {
		for _, entry := range logs[f.ID] {
			s.logger.Info(entry.Details, "farm", f.ID, "day", entry.Day, "action", entry.Action, "ok", entry.OK)
			if s.recorder != nil {
				s.recorder.RecordAction(f.ID, entry)
			}
		}
		f.AdvanceDay(s.rules)
		snap.Farms[f.ID] = models.FarmSnapshot{
			Day:           fmt.Sprint(day),
			Decision:      choices[i].String(),
			Money:         f.Money,
			ReservedMoney: f.ReservedMoney,
			Energy:        f.Energy,
			Crops:         f.CropViews(),
			Log:           logs[f.ID],
		}
		if s.recorder != nil {
			s.recorder.RecordFarm(f)
		}
	}
	if s.recorder != nil {
		for _, t := range trades {
			s.recorder.RecordTrade(t)
		}
	}
	s.logger.Debug("turn finished", "day", day, "trades", len(trades))
	return snap, nil
}

// finish clears both order books and builds the final snapshot
func (s *Scheduler) finish() models.Snapshot {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	snap := models.Snapshot{Final: true, Farms: map[string]models.FarmSnapshot{}}
	for _, f := range s.farms {
		s.engine.ClearOrderBook(f)
	}
	for _, f := range s.farms {
		snap.Day = f.Day - 1
		harvested := make(map[string]int, len(f.Harvested))
		for k, n := range f.Harvested {
			harvested[k] = n
		}
		snap.Farms[f.ID] = models.FarmSnapshot{
			Day:            "Final",
			Decision:       "Competition finished",
			Money:          f.Money,
			ReservedMoney:  f.ReservedMoney,
			Energy:         f.Energy,
			Crops:          f.CropViews(),
			HarvestedCrops: harvested,
		}
	}
	s.logger.Info("competition finished", "days", snap.Day)
	return snap
}

// Farms returns detached views of both farms
func (s *Scheduler) Farms() [2]models.FarmView {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	var views [2]models.FarmView
	for i, f := range s.farms {
		views[i] = f.View(s.rules)
		s.engine.Decorate(&views[i])
	}
	return views
}
