package report

import (
	"sort"
	"sync"

	"github.com/cgast/gramtest/pkg/runner"
)

// Collector gathers case results from concurrent workers.
type Collector struct {
	mu      sync.Mutex
	results []runner.CaseResult
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a result. It is safe for concurrent use.
func (c *Collector) Add(r runner.CaseResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Len returns the number of recorded results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Results returns a copy of the recorded results sorted by case ID.
func (c *Collector) Results() []runner.CaseResult {
	c.mu.Lock()
	out := make([]runner.CaseResult, len(c.results))
	copy(out, c.results)
	c.mu.Unlock()

	sortResults(out)
	return out
}

func sortResults(rs []runner.CaseResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Case.ID != rs[j].Case.ID {
			return rs[i].Case.ID < rs[j].Case.ID
		}
		return rs[i].Index < rs[j].Index
	})
}
