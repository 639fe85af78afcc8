package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/kindred/internal/models"
	"github.com/desertthunder/kindred/internal/ranking"
	"github.com/desertthunder/kindred/internal/shared"
	th "github.com/desertthunder/kindred/internal/testing"
)

func newRankedTable(t *testing.T) (*models.FeatureTable, *ranking.Result) {
	t.Helper()
	table := &models.FeatureTable{
		Columns: []string{"energy", "valence"},
		Rows: [][]float64{
			{0.1, 0.2},
			{0.2, 0.3},
			{0.15, 0.25},
			{0.9, 0.9},
			{0.12, 0.21},
		},
		URIs: []string{
			"spotify:track:s1",
			"spotify:track:s2",
			"spotify:track:c1",
			"spotify:track:c2",
			"spotify:track:c3",
		},
		Groups: []models.SourceGroup{
			models.GroupSeed,
			models.GroupSeed,
			models.GroupCandidate,
			models.GroupCandidate,
			models.GroupCandidate,
		},
	}

	result, err := ranking.Rank(table, ranking.Options{Neighbors: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	return table, result
}

func TestTables(t *testing.T) {
	table, result := newRankedTable(t)

	t.Run("FeatureSummary", func(t *testing.T) {
		out := FeatureSummary(table)
		for _, want := range []string{"Feature", "Mean", "Std", "energy", "valence"} {
			if !strings.Contains(out, want) {
				t.Errorf("summary missing %q:\n%s", want, out)
			}
		}
		if FeatureSummary(&models.FeatureTable{}) != "" {
			t.Error("empty table should render nothing")
		}
	})

	t.Run("GroupComparison", func(t *testing.T) {
		out := GroupComparison(table, result)
		for _, want := range []string{"Seed (2)", "Selected (2)", "Excluded (1)", "energy"} {
			if !strings.Contains(out, want) {
				t.Errorf("comparison missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("GroupComparison with empty groups", func(t *testing.T) {
		empty := &ranking.Result{}
		out := GroupComparison(table, empty)
		if !strings.Contains(out, "-") {
			t.Errorf("expected placeholder for empty groups:\n%s", out)
		}
	})

	t.Run("RankingTable", func(t *testing.T) {
		out := RankingTable(result, 1)
		if !strings.Contains(out, result.Selected[0].Track.URI) {
			t.Errorf("ranking table missing top track:\n%s", out)
		}
		if strings.Contains(out, result.Selected[1].Track.URI) {
			t.Errorf("ranking table should stop at n:\n%s", out)
		}
		if RankingTable(&ranking.Result{}, 10) != "" {
			t.Error("empty selection should render nothing")
		}
	})
}

func TestExporters(t *testing.T) {
	table, result := newRankedTable(t)

	t.Run("BuildReport orders rows", func(t *testing.T) {
		report := BuildReport(table, result)
		if len(report.Rows) != table.Len() {
			t.Fatalf("expected %d rows, got %d", table.Len(), len(report.Rows))
		}
		if !report.Rows[0].Selected || report.Rows[0].Rank != 1 {
			t.Errorf("first row should be rank 1, got %+v", report.Rows[0])
		}
		if report.Rows[2].Selected || report.Rows[2].Group != models.GroupCandidate {
			t.Errorf("third row should be the excluded candidate, got %+v", report.Rows[2])
		}
		if report.Rows[3].Group != models.GroupSeed || report.Rows[4].Group != models.GroupSeed {
			t.Error("seeds should come last")
		}
		if report.Rows[2].URI != "spotify:track:c2" {
			t.Errorf("outlier should be excluded, got %s", report.Rows[2].URI)
		}
	})

	t.Run("ExportCSV", func(t *testing.T) {
		data, err := ExportCSV(table, result)
		if err != nil {
			t.Fatalf("ExportCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "URI,Group,Score,Rank,Selected,energy,valence") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "spotify:track:c2,candidate,") {
			t.Error("CSV missing excluded candidate")
		}
		if lines := strings.Count(output, "\n"); lines != 6 {
			t.Errorf("expected 6 lines, got %d", lines)
		}
	})

	t.Run("ExportJSON", func(t *testing.T) {
		data, err := ExportJSON(table, result)
		if err != nil {
			t.Fatalf("ExportJSON failed: %v", err)
		}

		var report Report
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report.Neighbors != 2 {
			t.Errorf("expected neighbors 2, got %d", report.Neighbors)
		}
		if len(report.Stats) != 2 || report.Stats[0].Name != "energy" {
			t.Errorf("unexpected stats %+v", report.Stats)
		}
		if !strings.Contains(string(data), `"group": "candidate"`) {
			t.Error("groups should be encoded by name")
		}
	})
}

func TestWriteExport(t *testing.T) {
	table, result := newRankedTable(t)
	dir := t.TempDir()

	for _, name := range []string{"out.csv", "out.JSON"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := WriteExport(path, table, result); err != nil {
				t.Fatalf("WriteExport() error = %v", err)
			}
			th.AssertFileExists(t, path)
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		err := WriteExport(filepath.Join(dir, "out.xml"), table, result)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		if err := WriteExport(filepath.Join(dir, "missing", "out.csv"), table, result); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestFeatureTableSnapshot(t *testing.T) {
	table, _ := newRankedTable(t)
	dir := t.TempDir()

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(dir, "features.json")
		if err := WriteFeatureTable(path, table); err != nil {
			t.Fatalf("WriteFeatureTable() error = %v", err)
		}

		got, err := ReadFeatureTable(path)
		if err != nil {
			t.Fatalf("ReadFeatureTable() error = %v", err)
		}
		if got.Len() != table.Len() || got.Count(models.GroupSeed) != 2 {
			t.Errorf("snapshot lost rows: %d rows, %d seeds", got.Len(), got.Count(models.GroupSeed))
		}
		if !strings.Contains(th.MustReadFile(t, path), `"seed"`) {
			t.Error("snapshot should store group names")
		}
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed JSON", content: "{"},
		{name: "misaligned columns", content: `{"columns":["energy"],"rows":[[1,2]],"uris":["a"],"groups":["seed"]}`},
		{name: "unknown group", content: `{"columns":["energy"],"rows":[[1]],"uris":["a"],"groups":["other"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			th.MustWriteFile(t, path, tt.content)

			if _, err := ReadFeatureTable(path); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadFeatureTable(filepath.Join(dir, "nope.json")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}
