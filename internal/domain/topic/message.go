package topic

import (
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Message is one value flowing through a topic
type Message struct {
	Topic   string    `json:"topic"`
	Value   any       `json:"value"`
	TraceID string    `json:"trace_id,omitempty"`
	At      time.Time `json:"at"`
}

// Info describes a topic for listing
type Info struct {
	Name        string   `json:"name"`
	Derived     bool     `json:"derived"`
	Source      string   `json:"source,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Cached      bool     `json:"cached,omitempty"`
	Subscribers int      `json:"subscribers"`
	Messages    uint64   `json:"messages"`
	Drops       uint64   `json:"drops"`
	Last        *Message `json:"last,omitempty"`
	Stats       *Stats   `json:"stats,omitempty"`
}

// Stats summarizes the most recent numeric values of a topic
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// window is a fixed-size ring of recent numeric values
type window struct {
	values []float64
	next   int
	full   bool
}

func newWindow(size int) *window {
	if size <= 0 {
		size = 1
	}
	return &window{values: make([]float64, size)}
}

func (w *window) add(v float64) {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) snapshot() []float64 {
	if w.full {
		return append([]float64(nil), w.values...)
	}
	return append([]float64(nil), w.values[:w.next]...)
}

// stats computes summary statistics using gonum
func (w *window) stats() *Stats {
	values := w.snapshot()
	if len(values) == 0 {
		return nil
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return &Stats{
		Count:  len(values),
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

// numeric converts decoded JSON and JavaScript numbers to float64
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// validName reports whether name is a usable topic name: slash-separated
// non-empty segments without glob metacharacters.
func validName(name string) bool {
	if name == "" || strings.ContainsAny(name, "*?[]{}\\") {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || strings.TrimSpace(segment) != segment {
			return false
		}
	}
	return true
}
