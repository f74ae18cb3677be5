package scraper

import (
	"sync"
	"time"

	"github.com/ChoisMath/kyobobook/models"
)

// MaxRecentFailures bounds the failure list kept by Stats.
const MaxRecentFailures = 20

// Stats counts extraction outcomes for one process or session.
// The zero value is ready to use.
type Stats struct {
	mu             sync.Mutex
	totalAttempts  int
	priceSuccesses int
	byMethod       map[string]int
	failures       []models.Failure
}

// NewStats returns empty counters.
func NewStats() *Stats {
	return &Stats{}
}

// Record counts one extraction. A record without a price counts as a failure.
func (s *Stats) Record(url string, rec *models.BookRecord, at time.Time) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalAttempts++
	if rec != nil && rec.Price != "" {
		s.priceSuccesses++
		if s.byMethod == nil {
			s.byMethod = make(map[string]int)
		}
		s.byMethod[rec.ExtractionMethod]++
		return
	}

	s.failures = append(s.failures, models.Failure{URL: url, At: at})
	if over := len(s.failures) - MaxRecentFailures; over > 0 {
		s.failures = append(s.failures[:0:0], s.failures[over:]...)
	}
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() models.StatsSnapshot {
	if s == nil {
		return models.StatsSnapshot{ByMethod: map[string]int{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := models.StatsSnapshot{
		TotalAttempts:  s.totalAttempts,
		PriceSuccesses: s.priceSuccesses,
		ByMethod:       make(map[string]int, len(s.byMethod)),
		RecentFailures: make([]models.Failure, len(s.failures)),
	}
	for k, v := range s.byMethod {
		out.ByMethod[k] = v
	}
	copy(out.RecentFailures, s.failures)
	return out
}

// Reset clears all counters.
func (s *Stats) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalAttempts = 0
	s.priceSuccesses = 0
	s.byMethod = nil
	s.failures = nil
}
