package main

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/proximity"
	"github.com/sells-group/stationreach/internal/query"
	"github.com/sells-group/stationreach/internal/report"
	"github.com/sells-group/stationreach/internal/store"
)

// addOutputFlags registers the result destination flags shared by the table
// commands.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	cmd.Flags().String("format", report.FormatCSV, "output format: csv or xlsx")
	cmd.Flags().Bool("record", false, "record the run and its result in the store")
}

// addSweepFlags registers the threshold range flags. Unset flags fall back
// to query.sweep in the config.
func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("from", 0, "first threshold in meters (default from config)")
	cmd.Flags().Float64("to", 0, "last threshold in meters (default from config)")
	cmd.Flags().Float64("step", 0, "threshold step in meters (default from config)")
}

// sweepThresholds resolves the thresholds a sweep command runs over.
func sweepThresholds(cmd *cobra.Command) (aggregate.Thresholds, error) {
	sw := cfg.Query.Sweep
	if cmd.Flags().Changed("from") {
		sw.From, _ = cmd.Flags().GetFloat64("from")
	}
	if cmd.Flags().Changed("to") {
		sw.To, _ = cmd.Flags().GetFloat64("to")
	}
	if cmd.Flags().Changed("step") {
		sw.Step, _ = cmd.Flags().GetFloat64("step")
	}
	return aggregate.Range(sw.From, sw.To, sw.Step)
}

// sweepParams records the resolved thresholds of a sweep run.
func sweepParams(th aggregate.Thresholds) map[string]any {
	return map[string]any{
		"from":       th[0],
		"to":         th[len(th)-1],
		"thresholds": len(th),
	}
}

// radiusArg parses the optional radius argument at position i, defaulting to
// query.radius.
func radiusArg(args []string, i int) (float64, error) {
	if len(args) <= i {
		return cfg.Query.Radius, nil
	}
	r, err := strconv.ParseFloat(args[i], 64)
	if err != nil || r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, eris.Errorf("invalid radius %q: want a non-negative number of meters", args[i])
	}
	return r, nil
}

func executor() *query.Executor {
	return query.New(cfg.Query.Workers)
}

// loadEnv loads a configured dataset and indexes its stations.
func loadEnv(ctx context.Context, name string) (*proximity.Env, error) {
	ds, err := cfg.Dataset(name)
	if err != nil {
		return nil, err
	}
	return proximity.Load(ctx, ds, executor())
}

// runTable computes a result table and writes it to the output flags'
// destination. With --record the run is also tracked in the store: created
// before the work starts, then completed with the table or failed with the
// error.
func runTable(cmd *cobra.Command, dataset string, params map[string]any, compute func(ctx context.Context) (*report.Table, error)) error {
	ctx := cmd.Context()
	dataset = strings.ToLower(dataset)
	log := zap.L().With(zap.String("command", cmd.Name()), zap.String("dataset", dataset))

	path, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	record, _ := cmd.Flags().GetBool("record")

	mode := "query"
	if record {
		mode = "record"
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	sink, err := report.NewFileSink(format, path, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	var sinks report.Multi

	var (
		st  store.Store
		run *store.Run
	)
	if record {
		st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		run, err = st.CreateRun(ctx, cmd.Name(), dataset, params)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		sinks = append(sinks, &report.StoreSink{Store: st, RunID: run.ID})
		log = log.With(zap.String("run_id", run.ID))
	}
	// The output file is written last so a failed recording leaves no file.
	sinks = append(sinks, sink)

	start := time.Now()
	t, err := compute(ctx)
	if err == nil {
		err = sinks.Put(ctx, t)
	}
	if err != nil {
		if run != nil {
			if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
				log.Warn("failed to mark run failed", zap.Error(ferr))
			}
		}
		return eris.Wrap(err, cmd.Name())
	}

	log.Info("result written",
		zap.Int("rows", t.Len()),
		zap.String("output", path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// writeOutput hands write either stdout or, through report.WriteFile, a
// temporary file that replaces path once write succeeds.
func writeOutput(path string, stdout io.Writer, write func(w io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	return report.WriteFile(path, write)
}
