package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/route"
)

var routeNight bool

var routeCmd = &cobra.Command{
	Use:   "route <origin> <destination>",
	Short: "Rank driving routes between two places by safety",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		mode := route.ModeDay
		if routeNight {
			mode = route.ModeNight
		}

		plan, err := route.NewPlanner(cfg.Route, logger, metrics.New()).Plan(cmd.Context(), args[0], args[1], mode)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, r := range plan.Routes {
			fmt.Fprintf(out, "%d. %s via %s: %.1f km, %.0f min, safety %.1f/10, %s traffic\n",
				i+1, r.Name, r.RoadSummary, r.DistanceKm, r.DurationMinutes, r.SafetyScore, r.TrafficLevel)
		}
		return nil
	},
}

func init() {
	routeCmd.Flags().BoolVar(&routeNight, "night", false, "score for night travel")
}
