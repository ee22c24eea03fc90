package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/vk/omnibuild/internal/scheduler"
)

// Result is the outcome of one component in a Report.
type Result struct {
	Name      string           `json:"name" yaml:"name"`
	Version   string           `json:"version" yaml:"version"`
	Status    scheduler.Status `json:"status" yaml:"status"`
	CacheKey  string           `json:"cache_key" yaml:"cache_key"`
	CacheHit  bool             `json:"cache_hit" yaml:"cache_hit"`
	ErrorKind string           `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration    `json:"duration_ns" yaml:"duration"`
}

// Report aggregates a run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	// Results are in build order.
	Results []Result `json:"results" yaml:"results"`
}

func resultFrom(r scheduler.Record) Result {
	return Result{
		Name:      r.Name,
		Version:   r.Version,
		Status:    r.Status,
		CacheKey:  r.CacheKey,
		CacheHit:  r.CacheHit,
		ErrorKind: ErrorKind(r.Err),
		Error:     r.Error,
		Duration:  r.Duration(),
	}
}

// Succeeded reports whether every component succeeded.
func (r *Report) Succeeded() bool {
	for _, res := range r.Results {
		if res.Status != scheduler.Success {
			return false
		}
	}
	return true
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts returns the number of components per status.
func (r *Report) Counts() map[scheduler.Status]int {
	counts := make(map[scheduler.Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Result returns the result for name.
func (r *Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// Format selects how a Report is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a report format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// WriteReport renders r to w.
func WriteReport(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(yamlReport(r))
	default:
		_, err := io.WriteString(w, renderText(r))
		return err
	}
}

// yamlReport converts durations to strings; yaml.v3 would print them as
// bare nanosecond integers.
func yamlReport(r *Report) map[string]any {
	results := make([]map[string]any, 0, len(r.Results))
	for _, res := range r.Results {
		m := map[string]any{
			"name":      res.Name,
			"version":   res.Version,
			"status":    res.Status.String(),
			"cache_key": res.CacheKey,
			"cache_hit": res.CacheHit,
			"duration":  res.Duration.String(),
		}
		if res.Error != "" {
			m["error_kind"] = res.ErrorKind
			m["error"] = res.Error
		}
		results = append(results, m)
	}
	return map[string]any{
		"run_id":      r.RunID,
		"started_at":  r.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at": r.FinishedAt.UTC().Format(time.RFC3339Nano),
		"results":     results,
	}
}

var (
	colorGreen   = lipgloss.Color("82")
	colorYellow  = lipgloss.Color("220")
	colorBoldRed = lipgloss.Color("204")
	colorDimGray = lipgloss.Color("240")

	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSummary = lipgloss.NewStyle().Bold(true)
)

// statusStyle returns the style for a component status.
func statusStyle(s scheduler.Status) lipgloss.Style {
	switch s {
	case scheduler.Success:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case scheduler.Failed:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBoldRed)
	case scheduler.Skipped, scheduler.Cancelled:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Faint(true)
	}
}

func renderText(r *Report) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDimGray)).
		Headers("COMPONENT", "VERSION", "STATUS", "CACHE", "DURATION", "ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, res := range r.Results {
		cacheCol := "-"
		if res.CacheHit {
			cacheCol = "hit"
		}
		errCol := ""
		if res.Error != "" {
			errCol = res.ErrorKind + ": " + res.Error
		}
		tbl.Row(
			res.Name,
			res.Version,
			statusStyle(res.Status).Render(res.Status.String()),
			cacheCol,
			res.Duration.Round(time.Millisecond).String(),
			errCol,
		)
	}

	counts := r.Counts()
	var parts []string
	for s := scheduler.Success; s <= scheduler.Cancelled; s++ {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	verdict := "BUILD SUCCEEDED"
	if !r.Succeeded() {
		verdict = "BUILD FAILED"
	}
	summary := fmt.Sprintf("%s (%s) in %s, run %s",
		verdict, strings.Join(parts, ", "), r.Duration().Round(time.Millisecond), r.RunID)

	return tbl.String() + "\n" + styleSummary.Render(summary) + "\n"
}
