// Package competition assembles a ready-to-run scheduler from config:
// decision sources, seeded randomness, pacing and metrics.
package competition

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/xtrntr/farmduel/internal/config"
	"github.com/xtrntr/farmduel/internal/decision"
	"github.com/xtrntr/farmduel/internal/random"
	"github.com/xtrntr/farmduel/internal/rules"
	"github.com/xtrntr/farmduel/internal/scheduler"
)

// FarmIDs are the two competitors' names
var FarmIDs = [2]string{"Farm A", "Farm B"}

// agentRequestsPerSecond caps calls to one remote agent
const agentRequestsPerSecond = 5

// Builder creates one scheduler per competition
type Builder struct {
	Sim      config.SimulationConfig
	Rules    *rules.Rules
	Logger   *slog.Logger
	Recorder scheduler.Recorder

	// Seeds overrides crypto seeding; tests use it
	Seeds func() (int64, error)
}

// Sources returns one decision source per farm. Farms without an agent
// URL play the greedy heuristic.
func (b *Builder) Sources() [2]scheduler.Source {
	var sources [2]scheduler.Source
	for i := range sources {
		url := ""
		if i < len(b.Sim.AgentURLs) {
			url = b.Sim.AgentURLs[i]
		}
		if url == "" {
			sources[i] = decision.Greedy{Rules: b.Rules}
			continue
		}
		sources[i] = decision.NewRemote(url, b.Sim.DecisionTimeout, agentRequestsPerSecond)
	}
	return sources
}

// New builds a scheduler and reports the seed it was given
func (b *Builder) New() (*scheduler.Scheduler, int64, error) {
	seed, err := random.ResolveSeed(b.Sim.Seed, b.Seeds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to seed competition: %w", err)
	}

	var interval rate.Limit
	if b.Sim.TurnInterval > 0 {
		interval = rate.Every(b.Sim.TurnInterval)
	}

	sources := b.Sources()
	s, err := scheduler.New(scheduler.Config{
		Rules: b.Rules,
		Players: [2]scheduler.Player{
			{ID: FarmIDs[0], Source: sources[0]},
			{ID: FarmIDs[1], Source: sources[1]},
		},
		Rand:         random.New(seed),
		Logger:       b.Logger,
		Recorder:     b.Recorder,
		TurnInterval: interval,
	})
	if err != nil {
		return nil, 0, err
	}
	return s, seed, nil
}
