package scene

import (
	"visuallab/internal/domain"
)

// BeginResult reports what BeginAnalysis did.
type BeginResult int

const (
	BeginStarted BeginResult = iota
	BeginNotFound
	BeginAlreadyAnalyzing
)

// BeginAnalysis moves the scene into analyzing with progress seeded, unless
// it is missing or already analyzing. The guard and the transition happen in
// one critical section. On success the returned scene carries the new attempt
// number, which the caller passes to the other transitions.
func (s *Store) BeginAnalysis(id string, seed int) (domain.Scene, BeginResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Scene{}, BeginNotFound
	}
	sc := &s.scenes[i]
	if sc.Status == domain.SceneStatusAnalyzing {
		return *sc, BeginAlreadyAnalyzing
	}
	sc.Status = domain.SceneStatusAnalyzing
	sc.Progress = clamp(seed, 0, 99)
	sc.Attempt++
	sc.LastError = ""
	return *sc, BeginStarted
}

// AdvanceProgress adds delta to the progress of an analyzing scene, capped at
// ceiling. Ticks from an older attempt or for a scene no longer analyzing are
// ignored. Progress never decreases.
func (s *Store) AdvanceProgress(id string, attempt, delta, ceiling int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current(id, attempt)
	if !ok {
		return 0, false
	}
	next := sc.Progress + max(delta, 0)
	if next > ceiling {
		next = ceiling
	}
	if next > sc.Progress {
		sc.Progress = next
	}
	return sc.Progress, true
}

// Complete records a successful analysis.
func (s *Store) Complete(id string, attempt int, text string, variant domain.Variant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current(id, attempt)
	if !ok {
		return false
	}
	sc.ResultText = text
	sc.Variant = variant
	sc.Status = domain.SceneStatusCompleted
	sc.Progress = 100
	sc.LastError = ""
	return true
}

// Fail records a failed analysis. The previous result text is kept.
func (s *Store) Fail(id string, attempt int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current(id, attempt)
	if !ok {
		return false
	}
	sc.Status = domain.SceneStatusError
	sc.Progress = 0
	sc.LastError = message
	return true
}

// current must be called with s.mu held.
func (s *Store) current(id string, attempt int) (*domain.Scene, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	sc := &s.scenes[i]
	if sc.Attempt != attempt || sc.Status != domain.SceneStatusAnalyzing {
		return nil, false
	}
	return sc, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
