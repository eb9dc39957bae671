package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/xtrntr/farmduel/internal/competition"
	"github.com/xtrntr/farmduel/internal/config"
	"github.com/xtrntr/farmduel/internal/logging"
	"github.com/xtrntr/farmduel/internal/models"
)

func newRunCommand() *cobra.Command {
	var (
		rulesPath string
		days      int
		seed      int64
		agents    []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless competition",
		Long: `Run a whole competition and print one JSON snapshot per line, the
final snapshot last. Farms without an agent URL play the built-in greedy
strategy.

Examples:
  farmsim run
  farmsim run --days 20 --seed 7
  farmsim run --agent http://localhost:7001/decide --agent ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// keep stdout for snapshots
			cfg.Logging.Output = "stderr"
			logger := logging.New(cfg.Logging)

			r, err := loadRules(cfg, rulesPath)
			if err != nil {
				return err
			}
			if days > 0 {
				r.TotalDays = days
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed = seed
			}
			if cmd.Flags().Changed("agent") {
				cfg.Simulation.AgentURLs = agents
			}
			// headless runs never pace turns
			cfg.Simulation.TurnInterval = 0

			builder := &competition.Builder{Sim: cfg.Simulation, Rules: r, Logger: logger}
			s, usedSeed, err := builder.New()
			if err != nil {
				return err
			}
			logger.Info("competition started", "seed", usedSeed, "days", r.TotalDays)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return s.Run(ctx, func(snap models.Snapshot) error {
				if snap.Final {
					logFinal(logger, snap)
				}
				return enc.Encode(snap)
			})
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules file (overrides simulation.rules_path)")
	cmd.Flags().IntVar(&days, "days", 0, "Override total days")
	cmd.Flags().Int64Var(&seed, "seed", 0, "PRNG seed (0 for a random one)")
	cmd.Flags().StringArrayVar(&agents, "agent", nil, "Agent URL per farm, in order; empty for greedy")

	return cmd
}

func logFinal(logger *slog.Logger, snap models.Snapshot) {
	for _, id := range competition.FarmIDs {
		fs := snap.Farms[id]
		logger.Info("final standing", "farm", id, "money", fmt.Sprintf("%.2f", fs.Money), "crops", len(fs.Crops))
	}
}
