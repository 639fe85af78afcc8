package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/kindred/internal/tasks"
)

// Printer writes progress updates as they arrive.
type Printer struct {
	w     io.Writer
	quiet bool
}

// NewPrinter creates a Printer. A quiet printer discards everything.
func NewPrinter(w io.Writer, quiet bool) *Printer {
	return &Printer{w: w, quiet: quiet}
}

// Watch drains progress until it is closed and signals done afterwards.
func (p *Printer) Watch(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		p.Progress(update)
	}
}

// Progress prints a single update.
func (p *Printer) Progress(update tasks.ProgressUpdate) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.w, RenderProgress(update))
}

// RenderProgress formats an update with its phase label.
func RenderProgress(update tasks.ProgressUpdate) string {
	var phase string
	switch update.Phase {
	case tasks.ResolveSeeds:
		phase = "seeds"
	case tasks.Expand:
		phase = "expand"
	case tasks.SampleTracks:
		phase = "tracks"
	case tasks.FetchFeatures:
		phase = "features"
	case tasks.Rank:
		phase = "rank"
	case tasks.CreatePlaylist, tasks.AddTracks:
		phase = "publish"
	default:
		phase = "..."
	}
	return fmt.Sprintf("%s %s", Help(fmt.Sprintf("%-8s", phase)), update.Message)
}

// RenderResult summarises a finished discovery run.
func RenderResult(result *tasks.DiscoveryResult, dryRun bool) string {
	if result == nil {
		return Err("No result available")
	}

	var b strings.Builder

	selected, excluded := 0, 0
	if result.Ranking != nil {
		selected, excluded = len(result.Ranking.Selected), len(result.Ranking.Excluded)
	}
	rows := 0
	if result.Table != nil {
		rows = result.Table.Len()
	}

	switch {
	case dryRun:
		b.WriteString(Title("Dry run complete"))
	case result.PlaylistID != "":
		b.WriteString(OK("✓ Playlist created"))
	default:
		b.WriteString(Warn("No playlist created"))
	}

	fmt.Fprintf(&b, "\nSeeds: %d resolved of %d\nCandidate artists: %d\nTracks analysed: %d\nSelected: %d (excluded %d)",
		len(result.Seeds), len(result.Lookups), len(result.Candidates), rows, selected, excluded)
	if result.PlaylistID != "" {
		fmt.Fprintf(&b, "\nPlaylist ID: %s", result.PlaylistID)
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n\n")
		b.WriteString(Warn(fmt.Sprintf("%d warnings:", len(result.Warnings))))
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "\n  • %s", w)
		}
	}

	return b.String()
}
