package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/aggregate"
	"github.com/sells-group/stationreach/internal/proximity"
	"github.com/sells-group/stationreach/internal/report"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix <dataset>",
	Short: "Write the distance from every population point to every station",
	Long: "Streams pp_x,pp_y,pop,dist rows for every population point and station " +
		"pair. The output is written to a temporary file and moved into place only " +
		"once complete. Defaults to the dataset's configured matrix path.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = ds.Matrix
		}
		if path == "-" {
			path = ""
		}

		env, err := loadEnv(ctx, ds.Name)
		if err != nil {
			return err
		}

		start := time.Now()
		var rows int
		err = writeOutput(path, cmd.OutOrStdout(), func(w io.Writer) error {
			out, err := report.NewCSVStream[aggregate.MatrixRow](w)
			if err != nil {
				return err
			}
			if err := env.Matrix(ctx, out.Write); err != nil {
				return err
			}
			rows = out.Rows()
			return out.Close()
		})
		if err != nil {
			return eris.Wrap(err, "matrix")
		}

		zap.L().Info("distance matrix written",
			zap.String("dataset", ds.Name),
			zap.String("output", path),
			zap.Int("rows", rows),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

var matrixCheckCmd = &cobra.Command{
	Use:   "check <dataset|path>",
	Short: "Validate a distance matrix file",
	Long: "Streams a matrix file in chunks and fails on the first data line that does " +
		"not hold four numeric fields. The argument is a configured dataset, whose " +
		"matrix path is checked, or a file path.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		path := args[0]
		if ds, err := cfg.Dataset(args[0]); err == nil && ds.Matrix != "" {
			path = ds.Matrix
		}

		check, err := proximity.CheckMatrix(ctx, executor(), path, cfg.Query.ChunkSize)
		if err != nil {
			return eris.Wrap(err, "matrix check")
		}

		formatMatrixCheck(cmd.OutOrStdout(), path, check)
		return nil
	},
}

// formatMatrixCheck writes a check summary to out.
func formatMatrixCheck(out io.Writer, path string, c proximity.MatrixCheck) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "File:\t%s\n", path)
	_, _ = fmt.Fprintf(w, "Lines:\t%d\n", c.Lines)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", c.Rows)
	_ = w.Flush()
}

func init() {
	matrixCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default from dataset config)")

	matrixCmd.AddCommand(matrixCheckCmd)
	rootCmd.AddCommand(matrixCmd)
}
