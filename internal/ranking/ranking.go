package ranking

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/shared"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultNeighbors = 5
	DefaultLimit     = 100
)

// ColumnStats are the pooled statistics used to standardize one column.
type ColumnStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Options configures [Rank].
type Options struct {
	Neighbors int // k for the neighbour distance; defaults to [DefaultNeighbors]
	Limit     int // maximum number of selected candidates; defaults to [DefaultLimit]
}

// Result is the outcome of ranking a feature table.
type Result struct {
	Scores    []float64            // one per table row
	Stats     []ColumnStats        // one per table column
	Selected  []models.ScoredTrack // most similar first
	Excluded  []models.ScoredTrack // remaining candidates, ascending
	Neighbors int                  // k actually used
}

// SelectedURIs returns the selected track URIs in ranking order.
func (r *Result) SelectedURIs() []string {
	uris := make([]string, len(r.Selected))
	for i, s := range r.Selected {
		uris[i] = s.Track.URI
	}
	return uris
}

// Standardize returns a z-scored copy of rows using pooled column statistics.
//
// Standard deviation is the population (ddof 0) value. Columns with zero variance become zeros.
func Standardize(rows [][]float64) ([][]float64, []ColumnStats) {
	if len(rows) == 0 {
		return nil, nil
	}

	width := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = make([]float64, width)
	}

	stats := make([]ColumnStats, width)
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}

		mean, std := stat.PopMeanStdDev(col, nil)
		stats[j] = ColumnStats{Mean: mean, Std: std}

		if std == 0 {
			continue
		}
		for i := range rows {
			out[i][j] = (col[i] - mean) / std
		}
	}

	return out, stats
}

// KNNScores returns, for every row, the Euclidean distance to its k-th nearest other row.
//
// A row is never its own neighbour, even when another row holds identical values.
// k is clamped to len(matrix)-1. Fewer than two rows is an error.
func KNNScores(matrix [][]float64, k int) ([]float64, error) {
	n := len(matrix)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows for neighbour search, got %d", shared.ErrInsufficientData, n)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: neighbors must be positive, got %d", shared.ErrInvalidArgument, k)
	}
	k = min(k, n-1)

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(matrix[i], matrix[j], 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	scores := make([]float64, n)
	others := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		others = others[:0]
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, dist[i][j])
			}
		}
		slices.Sort(others)
		scores[i] = others[k-1]
	}

	return scores, nil
}

// Select returns up to limit candidate rows ordered by ascending score.
//
// Ties keep their original row order. The second return value holds the candidates that did
// not make the cut, in the same order.
func Select(table *models.FeatureTable, scores []float64, limit int) ([]models.ScoredTrack, []models.ScoredTrack) {
	candidates := make([]models.ScoredTrack, 0, table.Count(models.GroupCandidate))
	for i, g := range table.Groups {
		if g != models.GroupCandidate {
			continue
		}
		candidates = append(candidates, models.ScoredTrack{
			Track: table.Track(i),
			Score: scores[i],
			Row:   i,
		})
	}

	slices.SortStableFunc(candidates, func(a, b models.ScoredTrack) int {
		return cmp.Compare(a.Score, b.Score)
	})

	if limit < 0 {
		limit = 0
	}
	cut := min(limit, len(candidates))
	return candidates[:cut], candidates[cut:]
}

// Rank standardizes the table, scores every row and selects the most typical candidates.
//
// A table without candidate rows yields an empty selection rather than an error.
func Rank(table *models.FeatureTable, opts Options) (*Result, error) {
	if opts.Neighbors <= 0 {
		opts.Neighbors = DefaultNeighbors
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	standardized, stats := Standardize(table.Rows)
	for j := range stats {
		stats[j].Name = table.Columns[j]
	}

	if table.Count(models.GroupCandidate) == 0 {
		return &Result{
			Scores:   make([]float64, table.Len()),
			Stats:    stats,
			Selected: []models.ScoredTrack{},
			Excluded: []models.ScoredTrack{},
		}, nil
	}

	scores, err := KNNScores(standardized, opts.Neighbors)
	if err != nil {
		return nil, err
	}

	selected, excluded := Select(table, scores, opts.Limit)

	return &Result{
		Scores:    scores,
		Stats:     stats,
		Selected:  selected,
		Excluded:  excluded,
		Neighbors: min(opts.Neighbors, table.Len()-1),
	}, nil
}
