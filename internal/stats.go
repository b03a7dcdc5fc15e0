package internal

import (
	"fmt"
	"sync/atomic"
	"time"
)

// AppStats atomic counters for totals
type AppStats struct {
	start          time.Time
	FilesFound     atomic.Int64
	FilesProcessed atomic.Int64
	Matches        atomic.Int64
	Errors         atomic.Int64
	Crashed        atomic.Int64
}

func (s *AppStats) Start() {
	s.start = time.Now()
}

func (s *AppStats) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Summary is a point-in-time copy of AppStats.
type Summary struct {
	Files   int64
	Scanned int64
	Matches int64
	Errors  int64
	Crashed int64
	Elapsed time.Duration
}

func (s *AppStats) Snapshot() Summary {
	return Summary{
		Files:   s.FilesFound.Load(),
		Scanned: s.FilesProcessed.Load(),
		Matches: s.Matches.Load(),
		Errors:  s.Errors.Load(),
		Crashed: s.Crashed.Load(),
		Elapsed: s.Elapsed(),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("Scan finished in %s: files=%d scanned=%d matches=%d errors=%d crashed=%d",
		s.Elapsed.Round(time.Millisecond), s.Files, s.Scanned, s.Matches, s.Errors, s.Crashed)
}
