package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetroute/api"
	"github.com/kilianp07/fleetroute/app"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planner"
	"github.com/kilianp07/fleetroute/core/store"
	"github.com/kilianp07/fleetroute/infra/logger"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve a batch of requests against the configured fleet without touching the store",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "JSON file holding the request list")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(planFile)
	if err != nil {
		return err
	}
	var in []api.RequestIn
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode %s: %w", planFile, err)
	}
	reqs := make([]model.DeliveryRequest, len(in))
	for i, r := range in {
		reqs[i] = r.Request()
	}

	logger.SetLevel(cfg.LogLevel)
	provider, solver := app.NewSolver(cfg.Routing, logger.New("solver"))
	m, err := planner.NewManager(planner.Options{Store: store.NewMemoryStore(), Provider: provider, Solver: solver})
	if err != nil {
		return err
	}
	defer m.Close()
	ctx := cmd.Context()
	if _, err := app.Seed(ctx, m, cfg.Fleet); err != nil {
		return err
	}
	out, err := m.PlanBatch(ctx, reqs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), api.PlanOut{
		RunID:      out.RunID,
		Routes:     model.NewRouteViews(out.Routes),
		Unchanged:  out.Unchanged,
		Unassigned: out.Unassigned,
		TimedOut:   out.TimedOut,
	})
}
