package models

import (
	"fmt"
	"slices"
)

// FeatureVector holds the numeric audio descriptors of a single track.
type FeatureVector struct {
	URI              string  `json:"uri"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              float64 `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             float64 `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    float64 `json:"time_signature"`
	DurationMS       float64 `json:"duration_ms"`
}

// FeatureNames is the numeric schema of a [FeatureVector], in column order.
var FeatureNames = []string{
	"danceability",
	"energy",
	"key",
	"loudness",
	"mode",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
	"time_signature",
	"duration_ms",
}

// Value returns the named feature. ok is false for names outside [FeatureNames].
func (f FeatureVector) Value(name string) (float64, bool) {
	switch name {
	case "danceability":
		return f.Danceability, true
	case "energy":
		return f.Energy, true
	case "key":
		return f.Key, true
	case "loudness":
		return f.Loudness, true
	case "mode":
		return f.Mode, true
	case "speechiness":
		return f.Speechiness, true
	case "acousticness":
		return f.Acousticness, true
	case "instrumentalness":
		return f.Instrumentalness, true
	case "liveness":
		return f.Liveness, true
	case "valence":
		return f.Valence, true
	case "tempo":
		return f.Tempo, true
	case "time_signature":
		return f.TimeSignature, true
	case "duration_ms":
		return f.DurationMS, true
	default:
		return 0, false
	}
}

// SelectColumns returns [FeatureNames] minus the excluded names.
func SelectColumns(exclude []string) ([]string, error) {
	for _, name := range exclude {
		if !slices.Contains(FeatureNames, name) {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
	}

	columns := make([]string, 0, len(FeatureNames))
	for _, name := range FeatureNames {
		if !slices.Contains(exclude, name) {
			columns = append(columns, name)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no feature columns left after exclusion")
	}
	return columns, nil
}

// FeatureTable is an ordered list of numeric rows with parallel URI and group columns.
type FeatureTable struct {
	Columns []string      `json:"columns"`
	Rows    [][]float64   `json:"rows"`
	URIs    []string      `json:"uris"`
	Groups  []SourceGroup `json:"groups"`
}

// NewFeatureTable builds a table from tracks and their vectors, matched by URI.
//
// Every track must have exactly one vector.
func NewFeatureTable(columns []string, tracks []Track, vectors []FeatureVector) (*FeatureTable, error) {
	byURI := make(map[string]FeatureVector, len(vectors))
	for _, v := range vectors {
		if _, dup := byURI[v.URI]; dup {
			return nil, fmt.Errorf("duplicate feature vector for %s", v.URI)
		}
		byURI[v.URI] = v
	}

	table := &FeatureTable{
		Columns: slices.Clone(columns),
		Rows:    make([][]float64, 0, len(tracks)),
		URIs:    make([]string, 0, len(tracks)),
		Groups:  make([]SourceGroup, 0, len(tracks)),
	}

	for _, tr := range tracks {
		v, ok := byURI[tr.URI]
		if !ok {
			return nil, fmt.Errorf("missing feature vector for %s", tr.URI)
		}

		row := make([]float64, len(columns))
		for i, col := range columns {
			val, ok := v.Value(col)
			if !ok {
				return nil, fmt.Errorf("unknown feature column %q", col)
			}
			row[i] = val
		}

		table.Rows = append(table.Rows, row)
		table.URIs = append(table.URIs, tr.URI)
		table.Groups = append(table.Groups, tr.Group)
	}

	return table, nil
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// Track returns the track at row i.
func (t *FeatureTable) Track(i int) Track {
	return Track{URI: t.URIs[i], Group: t.Groups[i]}
}

// Count returns how many rows carry the group label.
func (t *FeatureTable) Count(g SourceGroup) int {
	n := 0
	for _, group := range t.Groups {
		if group == g {
			n++
		}
	}
	return n
}

// Column returns a copy of column j across all rows.
func (t *FeatureTable) Column(j int) []float64 {
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[j]
	}
	return col
}

// Validate checks that the parallel columns line up.
func (t *FeatureTable) Validate() error {
	if len(t.URIs) != len(t.Rows) || len(t.Groups) != len(t.Rows) {
		return fmt.Errorf("table has %d rows, %d uris and %d groups", len(t.Rows), len(t.URIs), len(t.Groups))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}
