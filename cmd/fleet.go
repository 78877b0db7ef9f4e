package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetroute/app"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planner"
	"github.com/kilianp07/fleetroute/infra/logger"
	"github.com/kilianp07/fleetroute/pkg/export"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the registered trucks",
	RunE:  runFleetLs,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the configured depot and trucks into the store",
	RunE:  runSeed,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Route related commands",
}

var routesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the committed routes",
	RunE:  runRoutesLs,
}

var routesFormat string

func init() {
	routesLsCmd.Flags().StringVar(&routesFormat, "format", "json", "output format: json or csv")
	fleetCmd.AddCommand(fleetLsCmd)
	routesCmd.AddCommand(routesLsCmd)
	rootCmd.AddCommand(fleetCmd, seedCmd, routesCmd)
}

// withManager opens the configured store and runs fn with a planner on top.
func withManager(cmd *cobra.Command, fn func(ctx context.Context, m *planner.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	provider, solver := app.NewSolver(cfg.Routing, logger.New("solver"))
	m, err := planner.NewManager(planner.Options{Store: st, Provider: provider, Solver: solver, Logger: logger.New("planner")})
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(cmd.Context(), m)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	return withManager(cmd, func(ctx context.Context, m *planner.Manager) error {
		trucks, err := m.Trucks(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, t := range trucks {
			if _, err := fmt.Fprintf(out, "%d\tcapacity=%d\tavailable=%d\tposition=%.5f,%.5f\n",
				t.ID, t.Capacity, t.AvailableCapacity, t.Position.Lat, t.Position.Lon); err != nil {
				return err
			}
		}
		return nil
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return withManager(cmd, func(ctx context.Context, m *planner.Manager) error {
		trucks, err := app.Seed(ctx, m, cfg.Fleet)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d truck(s)\n", len(trucks))
		return err
	})
}

func runRoutesLs(cmd *cobra.Command, args []string) error {
	return withManager(cmd, func(ctx context.Context, m *planner.Manager) error {
		routes, err := m.Routes(ctx)
		if err != nil {
			return err
		}
		return export.Write(cmd.OutOrStdout(), routesFormat, model.NewRouteViews(routes))
	})
}
