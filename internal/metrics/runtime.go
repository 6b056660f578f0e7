package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "runtime_metrics.json"

// latencyBoundsMs are the inclusive upper bounds of the latency histogram.
var latencyBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// RuntimeSnapshot contains aggregated runtime metrics for tool calls and turns.
type RuntimeSnapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	Tool      ToolStats `json:"tool"`
	Turn      TurnStats `json:"turn"`
}

// ToolStats tracks tool call outcomes.
type ToolStats struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"by_kind"`
	// Executed counts calls that reached execution; latency covers only these.
	Executed          int64 `json:"executed"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// Count returns the number of results of the given kind.
func (t ToolStats) Count(kind string) int64 {
	return t.ByKind[kind]
}

// Ratio returns count(kind)/total in [0,1].
func (t ToolStats) Ratio(kind string) float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.ByKind[kind]) / float64(t.Total)
}

// AvgLatencyMs returns average execution latency in milliseconds.
func (t ToolStats) AvgLatencyMs() float64 {
	if t.Executed <= 0 {
		return 0
	}
	return float64(t.TotalLatencyMs) / float64(t.Executed)
}

// TurnStats tracks generation turns.
type TurnStats struct {
	Total     int64 `json:"total"`
	Cancelled int64 `json:"cancelled"`
}

// HasData reports whether any runtime metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Tool.Total > 0 || s.Turn.Total > 0
}

func (s RuntimeSnapshot) clone() RuntimeSnapshot {
	out := s
	out.Tool.ByKind = make(map[string]int64, len(s.Tool.ByKind))
	for k, v := range s.Tool.ByKind {
		out.Tool.ByKind[k] = v
	}
	return out
}

// RuntimeMetrics records tool results and turns, persisting a snapshot after
// every change so other processes (tether status) can read it.
type RuntimeMetrics struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	snap    RuntimeSnapshot
	latency latencyHistogram
}

// NewRuntimeMetrics creates a recorder persisting to <stateDir>/runtime_metrics.json.
// An empty stateDir keeps metrics in memory only.
func NewRuntimeMetrics(stateDir string) *RuntimeMetrics {
	m := &RuntimeMetrics{
		now:     time.Now,
		snap:    RuntimeSnapshot{Tool: ToolStats{ByKind: map[string]int64{}}},
		latency: newLatencyHistogram(),
	}
	if strings.TrimSpace(stateDir) != "" {
		m.path = snapshotPath(stateDir)
	}
	return m
}

// Snapshot returns a copy of the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

// RecordToolResult counts one emitted result. executed reports whether the
// call reached execution; only then is duration folded into latency.
func (m *RuntimeMetrics) RecordToolResult(kind string, duration time.Duration, executed bool) (RuntimeSnapshot, error) {
	return m.record(func(s *RuntimeSnapshot) {
		s.Tool.Total++
		s.Tool.ByKind[kind]++
		if !executed {
			return
		}
		ms := max(duration.Milliseconds(), 0)
		s.Tool.Executed++
		s.Tool.TotalLatencyMs += ms
		s.Tool.LastLatencyMs = ms
		s.Tool.MaxLatencyMs = max(s.Tool.MaxLatencyMs, ms)
		m.latency.observe(ms)
		s.Tool.P95ProxyLatencyMs = m.latency.p95(s.Tool.Executed)
	})
}

// RecordTurn counts one finished turn.
func (m *RuntimeMetrics) RecordTurn(cancelled bool) (RuntimeSnapshot, error) {
	return m.record(func(s *RuntimeSnapshot) {
		s.Turn.Total++
		if cancelled {
			s.Turn.Cancelled++
		}
	})
}

// record applies change under the lock and persists the result outside it.
func (m *RuntimeMetrics) record(change func(*RuntimeSnapshot)) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}
	m.mu.Lock()
	change(&m.snap)
	m.snap.UpdatedAt = m.now().UTC()
	snapshot := m.snap.clone()
	m.mu.Unlock()

	if m.path == "" {
		return snapshot, nil
	}
	return snapshot, writeSnapshot(m.path, snapshot)
}

// ReadRuntimeSnapshot reads the persisted snapshot from stateDir.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(stateDir string) (RuntimeSnapshot, error) {
	var snap RuntimeSnapshot
	raw, err := os.ReadFile(snapshotPath(stateDir))
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read runtime metrics: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func snapshotPath(stateDir string) string {
	return filepath.Join(stateDir, runtimeMetricsFileName)
}

func writeSnapshot(path string, snapshot RuntimeSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace runtime metrics: %w", err)
	}
	return nil
}

// latencyHistogram counts executions per bound in latencyBoundsMs; the
// extra last slot holds everything slower.
type latencyHistogram []int64

func newLatencyHistogram() latencyHistogram {
	return make(latencyHistogram, len(latencyBoundsMs)+1)
}

func (h latencyHistogram) observe(ms int64) {
	h[bucketFor(ms)]++
}

// p95 returns the upper bound of the bucket holding the 95th percentile of
// total observations. The overflow bucket reports the largest bound.
func (h latencyHistogram) p95(total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := max(int64(float64(total)*0.95), 1)
	largest := latencyBoundsMs[len(latencyBoundsMs)-1]

	var seen int64
	for i, count := range h {
		seen += count
		if seen < target {
			continue
		}
		if i < len(latencyBoundsMs) {
			return latencyBoundsMs[i]
		}
		return largest
	}
	return largest
}

func bucketFor(ms int64) int {
	for i, bound := range latencyBoundsMs {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBoundsMs)
}
