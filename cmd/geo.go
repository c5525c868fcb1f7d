package main

import (
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/geo"
)

// -- project --

var projectCmd = &cobra.Command{
	Use:   "project <input>",
	Short: "Append Web Mercator x,y columns to a lon/lat CSV",
	Long: "Reads a CSV with longitude and latitude columns and writes it back with x " +
		"and y columns in Web Mercator meters appended to every row. A row outside " +
		"the projectable latitude range fails the run.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		lon, _ := cmd.Flags().GetInt("lon")
		lat, _ := cmd.Flags().GetInt("lat")
		cols := geo.Columns{Lon: lon, Lat: lat}
		if err := cols.Validate(); err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		in, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "project: open %s", args[0])
		}
		defer in.Close() //nolint:errcheck

		start := time.Now()
		var stats geo.Stats
		err = writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
			stats, err = geo.Project(cmd.Context(), executor(), in, w, args[0], cols, cfg.Query.ChunkSize)
			return err
		})
		if err != nil {
			return eris.Wrap(err, "project")
		}

		zap.L().Info("projected",
			zap.String("input", args[0]),
			zap.String("output", output),
			zap.Int("rows", stats.Rows),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

// -- clip --

var clipCmd = &cobra.Command{
	Use:   "clip <dataset>",
	Short: "Keep the raw population rows inside a boundary",
	Long: "Reads the dataset's raw lon/lat population file and writes the rows that " +
		"fall strictly inside its boundary polygons (GeoJSON, shapefile or zipped " +
		"shapefile). Points on a boundary edge or inside a hole are dropped.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		ds, err := cfg.Dataset(args[0])
		if err != nil {
			return err
		}

		clip := ds.Clip
		if cmd.Flags().Changed("boundary") {
			clip.Boundary, _ = cmd.Flags().GetString("boundary")
		}
		if cmd.Flags().Changed("raw") {
			clip.Raw, _ = cmd.Flags().GetString("raw")
		}
		if clip.Boundary == "" || clip.Raw == "" {
			return eris.Errorf("clip: dataset %s needs a boundary and a raw population file", ds.Name)
		}
		cols := geo.Columns{Lon: clip.LonColumn, Lat: clip.LatColumn}
		if err := cols.Validate(); err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		boundary, err := geo.LoadBoundary(clip.Boundary)
		if err != nil {
			return eris.Wrap(err, "clip")
		}

		in, err := os.Open(clip.Raw)
		if err != nil {
			return eris.Wrapf(err, "clip: open %s", clip.Raw)
		}
		defer in.Close() //nolint:errcheck

		start := time.Now()
		var stats geo.Stats
		err = writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
			stats, err = geo.Clip(cmd.Context(), executor(), boundary, in, w, clip.Raw, cols, cfg.Query.ChunkSize)
			return err
		})
		if err != nil {
			return eris.Wrap(err, "clip")
		}

		zap.L().Info("clipped",
			zap.String("dataset", ds.Name),
			zap.String("boundary", clip.Boundary),
			zap.Int("polygons", boundary.Len()),
			zap.Int("rows", stats.Rows),
			zap.Int("kept", stats.Written),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	projectCmd.Flags().Int("lon", 1, "zero-based longitude column")
	projectCmd.Flags().Int("lat", 0, "zero-based latitude column")
	projectCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	clipCmd.Flags().String("boundary", "", "boundary file (default from dataset config)")
	clipCmd.Flags().String("raw", "", "raw lon/lat population file (default from dataset config)")
	clipCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(clipCmd)
}
