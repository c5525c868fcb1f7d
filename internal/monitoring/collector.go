// Package monitoring summarises recorded runs.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stationreach/internal/store"
)

// RunSnapshot holds a point-in-time view of recorded runs.
type RunSnapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`
	Rows     int     `json:"rows"`

	Commands []GroupCount `json:"commands"`
	Datasets []GroupCount `json:"datasets"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// GroupCount is the run count for one command or dataset.
type GroupCount struct {
	Name   string `json:"name"`
	Runs   int    `json:"runs"`
	Failed int    `json:"failed"`
}

// RunLister is the part of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
}

// Collector gathers run statistics from a store.
type Collector struct {
	store    RunLister
	pageSize int
}

// NewCollector creates a new run collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, pageSize: 500}
}

// Collect gathers a snapshot of runs created within the lookback window.
// A lookback of zero or less covers every run.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*RunSnapshot, error) {
	now := time.Now().UTC()
	snap := &RunSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.RunFilter{Limit: c.pageSize}
	if lookbackHours > 0 {
		filter.CreatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	commands := make(map[string]*GroupCount)
	datasets := make(map[string]*GroupCount)
	for {
		runs, err := c.store.ListRuns(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list runs")
		}
		for _, r := range runs {
			snap.Total++
			failed := false
			switch r.Status {
			case store.RunStatusComplete:
				snap.Complete++
				snap.Rows += r.Rows
			case store.RunStatusFailed:
				snap.Failed++
				failed = true
			case store.RunStatusRunning:
				snap.Running++
			}
			tally(commands, r.Command, failed)
			tally(datasets, r.Dataset, failed)
		}
		if len(runs) < filter.Limit {
			break
		}
		filter.Offset += len(runs)
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	snap.Commands = sorted(commands)
	snap.Datasets = sorted(datasets)
	return snap, nil
}

func tally(m map[string]*GroupCount, name string, failed bool) {
	g, ok := m[name]
	if !ok {
		g = &GroupCount{Name: name}
		m[name] = g
	}
	g.Runs++
	if failed {
		g.Failed++
	}
}

func sorted(m map[string]*GroupCount) []GroupCount {
	out := make([]GroupCount, 0, len(m))
	for _, g := range m {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Name < out[j].Name
	})
	return out
}
