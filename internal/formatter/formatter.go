// package formatter renders ranking diagnostics as terminal tables and exports results to CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/ranking"
	"github.com/desertthunder/kindred/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// FeatureSummary renders count, mean, sample std, min and max for every column of the table.
func FeatureSummary(t *models.FeatureTable) string {
	if t == nil || t.Len() == 0 {
		return ""
	}

	rows := make([][]string, 0, len(t.Columns))
	for j, name := range t.Columns {
		col := t.Column(j)
		std := 0.0
		if len(col) > 1 {
			std = stat.StdDev(col, nil)
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(len(col)),
			formatFloat(stat.Mean(col, nil)),
			formatFloat(std),
			formatFloat(floats.Min(col)),
			formatFloat(floats.Max(col)),
		})
	}

	return renderTable(
		[]string{"Feature", "Count", "Mean", "Std", "Min", "Max"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

// GroupComparison renders the per-feature mean of seed, selected and excluded rows.
//
// Empty groups show "-".
func GroupComparison(t *models.FeatureTable, r *ranking.Result) string {
	if t == nil || r == nil || t.Len() == 0 {
		return ""
	}

	var seeds []int
	for i, g := range t.Groups {
		if g == models.GroupSeed {
			seeds = append(seeds, i)
		}
	}
	selected := scoredRows(r.Selected)
	excluded := scoredRows(r.Excluded)

	rows := make([][]string, 0, len(t.Columns))
	for j, name := range t.Columns {
		rows = append(rows, []string{
			name,
			groupMean(t, seeds, j),
			groupMean(t, selected, j),
			groupMean(t, excluded, j),
		})
	}

	return renderTable(
		[]string{"Feature",
			fmt.Sprintf("Seed (%d)", len(seeds)),
			fmt.Sprintf("Selected (%d)", len(selected)),
			fmt.Sprintf("Excluded (%d)", len(excluded)),
		},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
}

func scoredRows(tracks []models.ScoredTrack) []int {
	rows := make([]int, len(tracks))
	for i, s := range tracks {
		rows[i] = s.Row
	}
	return rows
}

func groupMean(t *models.FeatureTable, rows []int, col int) string {
	if len(rows) == 0 {
		return "-"
	}
	vals := make([]float64, len(rows))
	for i, row := range rows {
		vals[i] = t.Rows[row][col]
	}
	return formatFloat(stat.Mean(vals, nil))
}

// RankingTable renders the first n selected tracks with their scores. n <= 0 renders all of them.
func RankingTable(r *ranking.Result, n int) string {
	if r == nil || len(r.Selected) == 0 {
		return ""
	}
	if n <= 0 || n > len(r.Selected) {
		n = len(r.Selected)
	}

	rows := make([][]string, 0, n)
	for i, s := range r.Selected[:n] {
		rows = append(rows, []string{strconv.Itoa(i + 1), s.Track.URI, formatFloat(s.Score)})
	}
	return renderTable(
		[]string{"#", "Track", "Score"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	)
}

// ReportRow is one analysed track in an export.
type ReportRow struct {
	URI      string             `json:"uri"`
	Group    models.SourceGroup `json:"group"`
	Score    float64            `json:"score"`
	Rank     int                `json:"rank,omitempty"` // 1-based position in the selection
	Selected bool               `json:"selected"`
	Features map[string]float64 `json:"features"`
}

// Report is the JSON export of a ranking.
type Report struct {
	Neighbors int                   `json:"neighbors"`
	Stats     []ranking.ColumnStats `json:"stats"`
	Rows      []ReportRow           `json:"rows"`
}

// BuildReport lists selected candidates in rank order, then excluded candidates, then seeds.
func BuildReport(t *models.FeatureTable, r *ranking.Result) *Report {
	report := &Report{
		Neighbors: r.Neighbors,
		Stats:     r.Stats,
		Rows:      make([]ReportRow, 0, t.Len()),
	}

	row := func(i int) ReportRow {
		features := make(map[string]float64, len(t.Columns))
		for j, name := range t.Columns {
			features[name] = t.Rows[i][j]
		}
		score := 0.0
		if i < len(r.Scores) {
			score = r.Scores[i]
		}
		return ReportRow{URI: t.URIs[i], Group: t.Groups[i], Score: score, Features: features}
	}

	for rank, s := range r.Selected {
		rr := row(s.Row)
		rr.Rank = rank + 1
		rr.Selected = true
		report.Rows = append(report.Rows, rr)
	}
	for _, s := range r.Excluded {
		report.Rows = append(report.Rows, row(s.Row))
	}
	for i, g := range t.Groups {
		if g == models.GroupSeed {
			report.Rows = append(report.Rows, row(i))
		}
	}
	return report
}

// ExportCSV converts a ranking to CSV with columns: URI, Group, Score, Rank, Selected, then one per feature.
func ExportCSV(t *models.FeatureTable, r *ranking.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{"URI", "Group", "Score", "Rank", "Selected"}, t.Columns...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range BuildReport(t, r).Rows {
		rank := ""
		if row.Rank > 0 {
			rank = strconv.Itoa(row.Rank)
		}
		record := []string{
			row.URI,
			row.Group.String(),
			strconv.FormatFloat(row.Score, 'g', -1, 64),
			rank,
			strconv.FormatBool(row.Selected),
		}
		for _, name := range t.Columns {
			record = append(record, strconv.FormatFloat(row.Features[name], 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportJSON converts a ranking to indented JSON.
func ExportJSON(t *models.FeatureTable, r *ranking.Result) ([]byte, error) {
	return shared.MarshalJSON(BuildReport(t, r), true)
}

// WriteExport writes the ranking to path, choosing CSV or JSON from the file extension.
func WriteExport(path string, t *models.FeatureTable, r *ranking.Result) error {
	var (
		data []byte
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		data, err = ExportCSV(t, r)
	case ".json":
		data, err = ExportJSON(t, r)
	default:
		return fmt.Errorf("%w: unsupported export format %q (use .csv or .json)", shared.ErrInvalidArgument, ext)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// WriteFeatureTable saves a feature table snapshot as JSON.
func WriteFeatureTable(path string, t *models.FeatureTable) error {
	data, err := shared.MarshalJSON(t, true)
	if err != nil {
		return fmt.Errorf("failed to encode feature table: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write feature table: %w", err)
	}
	return nil
}

// ReadFeatureTable loads a snapshot written by [WriteFeatureTable].
func ReadFeatureTable(path string) (*models.FeatureTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature table: %w", err)
	}

	var t models.FeatureTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: feature table: %v", shared.ErrInvalidInput, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: feature table: %v", shared.ErrInvalidInput, err)
	}
	return &t, nil
}
