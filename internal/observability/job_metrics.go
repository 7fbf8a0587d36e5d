package observability

import (
	"sync"
	"time"
)

// JobStats keeps per-process job outcome counts for the worker health
// endpoint. Prometheus carries the same data for scraping.
type JobStats struct {
	mu      sync.Mutex
	started time.Time
	claimed uint64
	byType  map[string]*JobTypeStats
}

type JobTypeStats struct {
	Done        uint64        `json:"done"`
	Retried     uint64        `json:"retried"`
	Failed      uint64        `json:"failed"`
	MaxDuration time.Duration `json:"maxDurationNs"`
	LastError   string        `json:"lastError,omitempty"`
}

type JobStatsSnapshot struct {
	Uptime  string                  `json:"uptime"`
	Claimed uint64                  `json:"claimed"`
	ByType  map[string]JobTypeStats `json:"byType"`
}

func NewJobStats() *JobStats {
	return &JobStats{started: time.Now(), byType: make(map[string]*JobTypeStats)}
}

func (s *JobStats) IncClaimed() {
	s.mu.Lock()
	s.claimed++
	s.mu.Unlock()
}

// Record adds one finished attempt. result is done, retry or failed.
func (s *JobStats) Record(jobType, result string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.byType[jobType]
	if !ok {
		ts = &JobTypeStats{}
		s.byType[jobType] = ts
	}

	switch result {
	case "done":
		ts.Done++
	case "retry":
		ts.Retried++
	case "failed":
		ts.Failed++
	}

	if d > ts.MaxDuration {
		ts.MaxDuration = d
	}
	if err != nil {
		ts.LastError = err.Error()
	}
}

func (s *JobStats) Snapshot() JobStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := JobStatsSnapshot{
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Claimed: s.claimed,
		ByType:  make(map[string]JobTypeStats, len(s.byType)),
	}
	for k, v := range s.byType {
		out.ByType[k] = *v
	}
	return out
}
