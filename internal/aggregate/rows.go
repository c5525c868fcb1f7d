package aggregate

// ProportionRow is one point of the cumulative coverage curve.
type ProportionRow struct {
	MaxDist float64 `csv:"max_dist" json:"max_dist"`
	Prop    float64 `csv:"prop" json:"prop"`
}

// StationCountRow is one point's station count at a threshold.
type StationCountRow struct {
	MaxDist   float64 `csv:"max_dist" json:"max_dist"`
	NStations int     `csv:"n_stations" json:"n_stations"`
}

// BoxRow is the station-count box summary at a threshold.
type BoxRow struct {
	MaxDist    float64 `csv:"max_dist" json:"max_dist"`
	LowerFence float64 `csv:"lower_fence" json:"lower_fence"`
	Q1         float64 `csv:"q1" json:"q1"`
	Median     float64 `csv:"median" json:"median"`
	Q3         float64 `csv:"q3" json:"q3"`
	UpperFence float64 `csv:"upper_fence" json:"upper_fence"`
	Outliers   int     `csv:"outliers" json:"outliers"`
}

// NewBoxRow labels a summary with its threshold.
func NewBoxRow(maxDist float64, b BoxSummary) BoxRow {
	return BoxRow{
		MaxDist:    maxDist,
		LowerFence: b.LowerFence,
		Q1:         b.Q1,
		Median:     b.Median,
		Q3:         b.Q3,
		UpperFence: b.UpperFence,
		Outliers:   b.Outliers,
	}
}

// PairRow pairs a point's population with its station count.
type PairRow struct {
	Population float64 `csv:"population" json:"population"`
	NStations  int     `csv:"n_stations" json:"n_stations"`
}

// CoordRow is a bare coordinate.
type CoordRow struct {
	X float64 `csv:"x" json:"x"`
	Y float64 `csv:"y" json:"y"`
}

// QuadrantRow is the per-category summary of a quadrant classification.
type QuadrantRow struct {
	Quadrant     string  `csv:"quadrant" json:"quadrant"`
	Points       int     `csv:"points" json:"points"`
	Population   float64 `csv:"population" json:"population"`
	PopulationQ3 float64 `csv:"population_q3" json:"population_q3"`
	StationsQ3   float64 `csv:"stations_q3" json:"stations_q3"`
}

// MatrixRow is one population-point to station distance.
type MatrixRow struct {
	PPX  float64 `csv:"pp_x" json:"pp_x"`
	PPY  float64 `csv:"pp_y" json:"pp_y"`
	Pop  float64 `csv:"pop" json:"pop"`
	Dist float64 `csv:"dist" json:"dist"`
}
