package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stationreach/internal/store"
)

const testConfig = `
datasets:
  test:
    population:
      path: pop.csv
      layout: {x: 3, y: 4, weight: 2, name: -1}
    stations:
      path: stations.csv
      layout: {x: 3, y: 4, weight: -1, name: 0}
    matrix: matrix.csv
    clip:
      boundary: boundary.geojson
      raw: raw.csv
      lon_column: 1
      lat_column: 0
  zero:
    population:
      path: zero.csv
      layout: {x: 3, y: 4, weight: 2, name: -1}
    stations:
      path: stations.csv
      layout: {x: 3, y: 4, weight: -1, name: 0}
  bad:
    population:
      path: bad.csv
      layout: {x: 3, y: 4, weight: 2, name: -1}
    stations:
      path: stations.csv
      layout: {x: 3, y: 4, weight: -1, name: 0}
query:
  workers: 2
  chunk_size: 16
  radius: 1000
  sweep: {from: 100, to: 300, step: 100}
store:
  driver: sqlite
  database_url: runs.db
log:
  level: error
  format: console
`

// setupWorkspace writes a config and a small dataset into a temp dir and
// makes it the working directory. Stations sit at (0,0) and (1000,0);
// population points are 50, 250 and 1000 meters from their nearest station.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"config.yaml":      testConfig,
		"stations.csv":     "name,lat,lon,x,y\nAlpha,0,0,0,0\nBeta,0,0,1000,0\n",
		"pop.csv":          "lat,lon,pop,x,y\n0,0,10,50,0\n0,0,30,0,250\n\n0,0,60,2000,0\n",
		"zero.csv":         "lat,lon,pop,x,y\n0,0,0,50,0\n",
		"bad.csv":          "lat,lon,pop,x,y\n0,0,10,50,0\n0,0,ten,0,250\n",
		"raw.csv":          "lat,lon,pop\n5,5,1\n20,20,2\n1,9,3\n",
		"boundary.geojson": `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// resetContext gives cmd and its subcommands ctx, since cobra keeps a
// subcommand's context from a previous execution.
func resetContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		resetContext(c, ctx)
	}
}

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	resetContext(rootCmd, t.Context())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCumulative(t *testing.T) {
	setupWorkspace(t)

	want := "max_dist,prop\n100,0.1\n200,0.1\n300,0.4\n"

	out, err := execute(t, "cumulative", "test")
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = execute(t, "cumulative", "TEST", "--stream")
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestCumulative_SweepFlags(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "cumulative", "test", "--from", "0", "--to", "1000", "--step", "500")
	require.NoError(t, err)
	assert.Equal(t, "max_dist,prop\n0,0\n500,0.4\n1000,1\n", out)

	_, err = execute(t, "cumulative", "test", "--step", "0")
	require.Error(t, err)
}

func TestCumulative_Errors(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "cumulative", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dataset "nowhere"`)

	_, err = execute(t, "cumulative", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total population is zero")

	out, err := execute(t, "cumulative", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv:3")
	assert.Empty(t, out)

	_, err = execute(t, "cumulative", "bad", "--stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv:3")

	for _, args := range [][]string{
		{"--to", "Inf"},
		{"--from", "NaN"},
		{"--to", "1e18", "--step", "0.001"},
	} {
		_, err = execute(t, append([]string{"cumulative", "test"}, args...)...)
		require.Error(t, err, "%v", args)
		assert.Contains(t, err.Error(), "aggregate:", "%v", args)
	}
}

func TestWithin(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "within", "test", "--from", "100", "--to", "300", "--step", "200")
	require.NoError(t, err)
	assert.Equal(t, "max_dist,n_stations\n100,1\n100,0\n100,0\n300,1\n300,1\n300,0\n", out)

	out, err = execute(t, "within", "test", "--summary", "--from", "300", "--to", "300", "--step", "100")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "max_dist,lower_fence,q1,median,q3,upper_fence,outliers", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "300,"))
}

func TestStations(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "stations", "test")
	require.NoError(t, err)
	assert.Equal(t, "population,n_stations\n10,2\n30,1\n60,1\n", out)

	out, err = execute(t, "stations", "test", "100")
	require.NoError(t, err)
	assert.Equal(t, "population,n_stations\n10,1\n30,0\n60,0\n", out)

	_, err = execute(t, "stations", "test", "-5")
	require.Error(t, err)
}

func TestQuadrants(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "quadrants", "test", "1000")
	require.NoError(t, err)
	assert.Equal(t, "quadrant,points,population,population_q3,stations_q3\n"+
		"green,1,30,45,1.5\n"+
		"red,1,10,45,1.5\n"+
		"orange,1,60,45,1.5\n"+
		"blue,0,0,45,1.5\n", out)

	out, err = execute(t, "quadrant-coords", "test", "Orange")
	require.NoError(t, err)
	assert.Equal(t, "x,y\n2000,0\n", out)

	_, err = execute(t, "quadrant-coords", "test", "purple")
	require.Error(t, err)
}

func TestOutputFile(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := execute(t, "stations", "test", "--output", "pairs.csv")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(dir, "pairs.csv"))
	require.NoError(t, err)
	assert.Equal(t, "population,n_stations\n10,2\n30,1\n60,1\n", string(data))

	_, err = execute(t, "stations", "test", "--format", "xlsx")
	require.Error(t, err)

	_, err = execute(t, "stations", "test", "--format", "xlsx", "--output", "pairs.xlsx")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "pairs.xlsx"))
}

func TestRecordedRuns_FailedRecordingWritesNoFile(t *testing.T) {
	dir := setupWorkspace(t)
	dbPath := filepath.Join(dir, "runs.db")

	st, err := store.Open(t.Context(), "sqlite", dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER reject_rows BEFORE INSERT ON run_rows BEGIN SELECT RAISE(ABORT, 'result storage disabled'); END`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = execute(t, "stations", "test", "--record", "--output", "pairs.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result storage disabled")
	assert.NoFileExists(t, filepath.Join(dir, "pairs.csv"))

	st, err = store.Open(t.Context(), "sqlite", dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(t.Context(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunStatusFailed, runs[0].Status)
}

func TestRecordedRuns(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := execute(t, "cumulative", "test", "--record")
	require.NoError(t, err)
	_, err = execute(t, "cumulative", "zero", "--record")
	require.Error(t, err)

	st, err := store.Open(t.Context(), "sqlite", filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	runs, err := st.ListRuns(t.Context(), store.RunFilter{})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 2)

	byStatus := make(map[store.RunStatus]store.Run)
	for _, r := range runs {
		byStatus[r.Status] = r
	}
	complete := byStatus[store.RunStatusComplete]
	assert.Equal(t, "cumulative", complete.Command)
	assert.Equal(t, "test", complete.Dataset)
	assert.Equal(t, 3, complete.Rows)
	failed := byStatus[store.RunStatusFailed]
	assert.Equal(t, "zero", failed.Dataset)
	assert.Contains(t, failed.Error, "total population is zero")

	out, err := execute(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, truncateID(complete.ID))
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "failed")

	out, err = execute(t, "runs", "list", "--status", "failed")
	require.NoError(t, err)
	assert.NotContains(t, out, truncateID(complete.ID))

	out, err = execute(t, "runs", "show", complete.ID, "--rows")
	require.NoError(t, err)
	assert.Equal(t, "max_dist,prop\n100,0.1\n200,0.1\n300,0.4\n", out)

	out, err = execute(t, "runs", "show", complete.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "complete"`)

	out, err = execute(t, "runs", "stats", "--since", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "50.0%")

	_, err = execute(t, "runs", "show", "missing")
	require.Error(t, err)
}

func TestMatrix(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := execute(t, "matrix", "test")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(dir, "matrix.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "pp_x,pp_y,pop,dist", lines[0])
	assert.Equal(t, "50,0,10,50", lines[1])
	assert.Equal(t, "50,0,10,950", lines[2])
	assert.Equal(t, "0,250,30,250", lines[3])
	assert.Equal(t, "2000,0,60,1000", lines[6])

	out, err = execute(t, "matrix", "check", "test")
	require.NoError(t, err)
	assert.Regexp(t, `Rows:\s+6`, out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("pp_x,pp_y,pop,dist\n1,2,3,4\n1,2,3\n"), 0o644))
	_, err = execute(t, "matrix", "check", "broken.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.csv:3")
}

func TestMatrix_FailureLeavesNoFile(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := execute(t, "matrix", "bad", "--output", "bad_matrix.csv")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "bad_matrix.csv"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".bad_matrix.csv"), "temp file %s left behind", e.Name())
	}
}

func TestProject(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "places.csv"), []byte("name,lat,lon\nnull,0,0\n"), 0o644))

	_, err := execute(t, "project", "places.csv", "--lat", "1", "--lon", "2", "--output", "projected.csv")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "projected.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "name,lat,lon,x,y", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "null,0,0,0,"), lines[1])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "polar.csv"), []byte("name,lat,lon\npole,89.9,0\n"), 0o644))
	_, err = execute(t, "project", "polar.csv", "--lat", "1", "--lon", "2", "--output", "polar_xy.csv")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "polar_xy.csv"))

	_, err = execute(t, "project", "places.csv", "--lat", "1", "--lon", "1")
	require.Error(t, err)
}

func TestClip(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := execute(t, "clip", "test")
	require.NoError(t, err)
	assert.Equal(t, "lat,lon,pop\n5,5,1\n1,9,3\n", out)

	_, err = execute(t, "clip", "test", "--output", "clipped.csv")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "clipped.csv"))
	require.NoError(t, err)
	assert.Equal(t, "lat,lon,pop\n5,5,1\n1,9,3\n", string(data))

	_, err = execute(t, "clip", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a boundary")

	_, err = execute(t, "clip", "test", "--boundary", "missing.geojson")
	require.Error(t, err)
}
