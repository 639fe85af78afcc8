// Package ui renders discovery progress and results for the terminal using lipgloss styles.
//
// [Printer] consumes the [tasks.ProgressUpdate] channel filled by the discovery engine and writes
// one styled line per update. [RenderResult] summarises a finished run, including any seeds that
// were skipped and tracks dropped for missing features.
package ui
