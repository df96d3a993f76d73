// Package memory accounts for the OpenCV Mats allocated during one pipeline
// pass so none outlive the frame that produced them.
package memory

import (
	"sync"

	"gocv.io/x/gocv"
)

// Scope owns every Mat allocated for one frame. Close releases them all.
// Mats obtained from a Scope must not be closed individually.
type Scope struct {
	Tag  string
	mats []gocv.Mat
	mgr  *Manager
}

// NewMat allocates an empty Mat owned by the scope.
func (s *Scope) NewMat() gocv.Mat {
	return s.Adopt(gocv.NewMat())
}

// NewMatWithSize allocates a zeroed Mat owned by the scope.
func (s *Scope) NewMatWithSize(rows, cols int, matType gocv.MatType) gocv.Mat {
	return s.Adopt(gocv.Zeros(rows, cols, matType))
}

// Adopt transfers ownership of m to the scope.
func (s *Scope) Adopt(m gocv.Mat) gocv.Mat {
	s.mats = append(s.mats, m)
	return m
}

// Live is the number of Mats the scope still owns.
func (s *Scope) Live() int {
	return len(s.mats)
}

// Close releases every owned Mat in reverse allocation order and returns how
// many were released.
func (s *Scope) Close() int {
	n := len(s.mats)
	for i := n - 1; i >= 0; i-- {
		m := s.mats[i]
		if m.Ptr() != nil {
			m.Close()
		}
	}
	s.mats = nil
	if s.mgr != nil {
		s.mgr.release(n)
	}
	return n
}

// Stats summarizes Mat traffic across all scopes.
type Stats struct {
	Scopes       int64
	OpenScopes   int64
	MatsReleased int64
	PeakPerScope int
}

// Manager hands out scopes and keeps totals.
type Manager struct {
	mu    sync.Mutex
	stats Stats
}

func NewManager() *Manager {
	return &Manager{}
}

// Scope opens a new per-frame scope.
func (m *Manager) Scope(tag string) *Scope {
	m.mu.Lock()
	m.stats.Scopes++
	m.stats.OpenScopes++
	m.mu.Unlock()
	return &Scope{Tag: tag, mgr: m}
}

func (m *Manager) release(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.OpenScopes--
	m.stats.MatsReleased += int64(n)
	if n > m.stats.PeakPerScope {
		m.stats.PeakPerScope = n
	}
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
