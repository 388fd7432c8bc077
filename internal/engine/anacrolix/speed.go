package anacrolix

import (
	"sync"
	"time"
)

// speedSampler derives byte-per-second rates from successive counter
// snapshots. The first sample always yields zero rates.
type speedSampler struct {
	mu           sync.Mutex
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func (s *speedSampler) sample(read, written int64, now time.Time) (downloadBps, uploadBps int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevAt := s.at
	prevRead := s.bytesRead
	prevWritten := s.bytesWritten

	s.at = now
	s.bytesRead = read
	s.bytesWritten = written

	if prevAt.IsZero() {
		return 0, 0
	}
	dt := now.Sub(prevAt).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	deltaRead := read - prevRead
	deltaWritten := written - prevWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}
	return int64(float64(deltaRead) / dt), int64(float64(deltaWritten) / dt)
}
