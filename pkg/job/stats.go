package job

import "time"

// Stats holds aggregate figures across all results of a run.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Elapsed time.Duration // sum of all elapsed times
	Average time.Duration
}

// ComputeStats aggregates results. Average is zero when there are no results.
func ComputeStats(results []Result) Stats {
	var s Stats
	s.Total = len(results)
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		}
		s.Elapsed += r.Elapsed
	}
	s.Failed = s.Total - s.Passed
	if s.Total > 0 {
		s.Average = s.Elapsed / time.Duration(s.Total)
	}
	return s
}
