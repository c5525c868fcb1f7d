package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/proximity"
	"github.com/sells-group/stationreach/internal/report"
)

// -- cumulative --

var cumulativeCmd = &cobra.Command{
	Use:   "cumulative <dataset>",
	Short: "Share of population within each distance of its nearest station",
	Long: "Sweeps distance thresholds and writes max_dist,prop rows: the share of the " +
		"dataset's population whose nearest station is no further than max_dist meters.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := sweepThresholds(cmd)
		if err != nil {
			return err
		}
		streamed, _ := cmd.Flags().GetBool("stream")

		params := sweepParams(th)
		params["stream"] = streamed

		return runTable(cmd, args[0], params, func(ctx context.Context) (*report.Table, error) {
			var (
				rows []aggregate.ProportionRow
				err  error
			)
			if streamed {
				rows, err = streamCoverage(ctx, args[0], th)
			} else {
				env, lerr := loadEnv(ctx, args[0])
				if lerr != nil {
					return nil, lerr
				}
				rows, err = env.Coverage(ctx, th)
			}
			if err != nil {
				return nil, err
			}
			return report.NewTable("cumulative", rows)
		})
	},
}

// streamCoverage computes the coverage curve without loading the population
// file into memory.
func streamCoverage(ctx context.Context, name string, th aggregate.Thresholds) ([]aggregate.ProportionRow, error) {
	ds, err := cfg.Dataset(name)
	if err != nil {
		return nil, err
	}
	_, idx, err := proximity.LoadStationIndex(ds)
	if err != nil {
		return nil, err
	}
	return proximity.StreamCoverage(ctx, executor(), idx, ds.Population.Path, ds.Population.Layout, cfg.Query.ChunkSize, th)
}

// -- within --

var withinCmd = &cobra.Command{
	Use:   "within <dataset>",
	Short: "Stations within each distance of every population point",
	Long: "Sweeps distance thresholds and writes max_dist,n_stations rows, one per " +
		"population point per threshold. With --summary, writes one box-plot summary " +
		"of the station counts per threshold instead.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := sweepThresholds(cmd)
		if err != nil {
			return err
		}
		summary, _ := cmd.Flags().GetBool("summary")

		params := sweepParams(th)
		params["summary"] = summary

		return runTable(cmd, args[0], params, func(ctx context.Context) (*report.Table, error) {
			env, err := loadEnv(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if summary {
				rows, err := env.StationSummary(ctx, th)
				if err != nil {
					return nil, err
				}
				return report.NewTable("within_summary", rows)
			}
			rows, err := env.StationCounts(ctx, th)
			if err != nil {
				return nil, err
			}
			return report.NewTable("within", rows)
		})
	},
}

// -- stations --

var stationsCmd = &cobra.Command{
	Use:   "stations <dataset> [radius]",
	Short: "Population and station count of every population point",
	Long: "Writes population,n_stations rows: each population point's weight paired " +
		"with the number of stations within radius meters (default query.radius).",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		radius, err := radiusArg(args, 1)
		if err != nil {
			return err
		}

		return runTable(cmd, args[0], map[string]any{"radius": radius}, func(ctx context.Context) (*report.Table, error) {
			env, err := loadEnv(ctx, args[0])
			if err != nil {
				return nil, err
			}
			rows, err := env.Pairs(ctx, radius)
			if err != nil {
				return nil, err
			}
			return report.NewTable("stations", rows)
		})
	},
}

// -- quadrants --

var quadrantsCmd = &cobra.Command{
	Use:   "quadrants <dataset> [radius]",
	Short: "Split population points by upper-quartile population and station count",
	Long: "Classifies every population point as green, red, orange or blue against the " +
		"upper quartiles of population and of station count within radius meters, and " +
		"writes the point count and population of each quadrant.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		radius, err := radiusArg(args, 1)
		if err != nil {
			return err
		}

		return runTable(cmd, args[0], map[string]any{"radius": radius}, func(ctx context.Context) (*report.Table, error) {
			env, err := loadEnv(ctx, args[0])
			if err != nil {
				return nil, err
			}
			tally, err := env.QuadrantSummary(ctx, radius)
			if err != nil {
				return nil, err
			}
			return report.NewTable("quadrants", tally.Rows())
		})
	},
}

// -- quadrant-coords --

var quadrantCoordsCmd = &cobra.Command{
	Use:   "quadrant-coords <dataset> <quadrant> [radius]",
	Short: "Coordinates of the population points in one quadrant",
	Long: "Writes x,y rows for the population points classified into quadrant " +
		"(green, red, orange or blue) at radius meters.",
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := aggregate.ParseQuadrant(args[1])
		if err != nil {
			return err
		}
		radius, err := radiusArg(args, 2)
		if err != nil {
			return err
		}

		params := map[string]any{"radius": radius, "quadrant": string(q)}
		return runTable(cmd, args[0], params, func(ctx context.Context) (*report.Table, error) {
			env, err := loadEnv(ctx, args[0])
			if err != nil {
				return nil, err
			}
			rows, err := env.QuadrantCoords(ctx, radius, q)
			if err != nil {
				return nil, err
			}
			return report.NewTable(string(q), rows)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{cumulativeCmd, withinCmd} {
		addSweepFlags(c)
	}
	cumulativeCmd.Flags().Bool("stream", false, "stream the population file in chunks instead of loading it")
	withinCmd.Flags().Bool("summary", false, "write a box-plot summary per threshold")

	for _, c := range []*cobra.Command{cumulativeCmd, withinCmd, stationsCmd, quadrantsCmd, quadrantCoordsCmd} {
		addOutputFlags(c)
		rootCmd.AddCommand(c)
	}
}
