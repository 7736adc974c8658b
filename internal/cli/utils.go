// Package cli formats command output for the BloomWatch CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bloomwatch/chatbot/internal/indexer"
	"github.com/bloomwatch/chatbot/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// Status describes the persisted index for `bloomwatch status`.
type Status struct {
	Collection     string    `json:"collection"`
	Backend        string    `json:"backend"`
	Path           string    `json:"path"`
	Built          bool      `json:"built"`
	BuildID        string    `json:"build_id,omitempty"`
	Embedder       string    `json:"embedder,omitempty"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	Dimensions     int       `json:"dimensions"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
	DiskUsageBytes int64     `json:"disk_usage_bytes"`
}

// WriteAnswer writes a chat answer to w in the given format.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for i, src := range resp.Sources {
			fmt.Fprintf(w, "  %d. %s\n", i+1, src)
		}
	} else {
		fmt.Fprintln(w, "Sources: none found in the knowledge base")
	}
	fmt.Fprintf(w, "Language: %s", resp.Language)
	if resp.TranslationDegraded {
		fmt.Fprintf(w, " (translation to %s unavailable)", resp.RequestedLanguage)
	}
	fmt.Fprintln(w)
	if resp.FarmDataUsed {
		fmt.Fprintln(w, "Farm data: used")
	}
	return nil
}

// WriteBuildReport writes the result of an index rebuild.
func WriteBuildReport(w io.Writer, report *indexer.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		warnings := make([]string, 0, len(report.Warnings))
		for _, warn := range report.Warnings {
			warnings = append(warnings, warn.Error())
		}
		return writeJSON(w, map[string]interface{}{
			"build_id":    report.BuildID,
			"documents":   report.Documents,
			"chunks":      report.Chunks,
			"warnings":    warnings,
			"duration_ms": report.Duration.Milliseconds(),
		})
	}
	fmt.Fprintf(w, "Indexed %d documents into %d chunks in %s (build %s)\n",
		report.Documents, report.Chunks, report.Duration.Round(time.Millisecond), report.BuildID)
	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "Skipped %d files:\n", len(report.Warnings))
		for _, warn := range report.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn.Error())
		}
	}
	return nil
}

// WriteStatus writes the persisted index status.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Collection:  %s\n", st.Collection)
	fmt.Fprintf(w, "Backend:     %s (%s)\n", st.Backend, st.Path)
	if !st.Built {
		fmt.Fprintln(w, "Index:       not built (run `bloomwatch index`)")
		return nil
	}
	fmt.Fprintf(w, "Build:       %s\n", st.BuildID)
	if st.Embedder != "" {
		fmt.Fprintf(w, "Embedder:    %s\n", st.Embedder)
	}
	if !st.BuiltAt.IsZero() {
		fmt.Fprintf(w, "Built at:    %s\n", st.BuiltAt.Format(time.RFC3339))
	}
	if st.Documents > 0 {
		fmt.Fprintf(w, "Documents:   %d\n", st.Documents)
	}
	fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
	fmt.Fprintf(w, "Dimensions:  %d\n", st.Dimensions)
	fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(st.DiskUsageBytes))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
