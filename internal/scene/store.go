// Package scene holds the ordered in-memory collection of captured scenes and
// the atomic state transitions the analysis flow relies on.
package scene

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"visuallab/internal/domain"
)

// Predicate selects scenes in Query.
type Predicate func(domain.Scene) bool

// Completed selects scenes whose result text is trusted.
func Completed(s domain.Scene) bool { return s.Status == domain.SceneStatusCompleted }

// NotCompleted selects scenes that still need an analysis.
func NotCompleted(s domain.Scene) bool { return s.Status != domain.SceneStatusCompleted }

// WithStatus selects scenes in the given state.
func WithStatus(status domain.SceneStatus) Predicate {
	return func(s domain.Scene) bool { return s.Status == status }
}

// Store is safe for concurrent use. Every read returns copies.
type Store struct {
	mu     sync.Mutex
	scenes []domain.Scene
	index  map[string]int

	// retired holds IDs that were removed or cleared; they are never reissued.
	retired map[string]struct{}
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int), retired: make(map[string]struct{}), now: time.Now}
}

// NewScene builds a pending scene from a captured frame with a fresh ID.
func NewScene(frame domain.Frame) domain.Scene {
	return domain.Scene{
		ID:         uuid.NewString(),
		Timestamp:  frame.Timestamp,
		Thumbnail:  frame.Thumbnail,
		Payload:    frame.Payload,
		ResultText: domain.PendingResultText,
		Status:     domain.SceneStatusPending,
	}
}

// Append adds s to the end of the collection as a pending scene. Missing IDs
// are generated and the lifecycle fields are reset, whatever the caller set.
// Appending an ID that is present, or was ever removed, returns false.
func (s *Store) Append(sc domain.Scene) (domain.Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if _, exists := s.index[sc.ID]; exists {
		return domain.Scene{}, false
	}
	if _, gone := s.retired[sc.ID]; gone {
		return domain.Scene{}, false
	}
	sc.Status = domain.SceneStatusPending
	sc.ResultText = domain.PendingResultText
	sc.Variant = ""
	sc.Progress = 0
	sc.Attempt = 0
	sc.LastError = ""
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.now().UTC()
	}
	s.index[sc.ID] = len(s.scenes)
	s.scenes = append(s.scenes, sc)
	return sc, true
}

// UpdateByID applies patch to the scene with id. It returns false without
// touching anything when the scene does not exist or the patch is invalid;
// a patch cannot move a scene into the analyzing state.
func (s *Store) UpdateByID(id string, patch domain.ScenePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || !patch.Valid() {
		return false
	}
	patch.Apply(&s.scenes[i])
	return true
}

// RemoveByID deletes the scene with id, preserving the order of the rest.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.scenes = append(s.scenes[:i], s.scenes[i+1:]...)
	delete(s.index, id)
	s.retired[id] = struct{}{}
	for j := i; j < len(s.scenes); j++ {
		s.index[s.scenes[j].ID] = j
	}
	return true
}

// Clear drops every scene. Their IDs stay retired.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.index {
		s.retired[id] = struct{}{}
	}
	s.scenes = nil
	s.index = make(map[string]int)
}

// Query returns the matching scenes in insertion order. A nil predicate
// matches everything.
func (s *Store) Query(pred Predicate) []domain.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Scene, 0, len(s.scenes))
	for _, sc := range s.scenes {
		if pred == nil || pred(sc) {
			out = append(out, sc)
		}
	}
	return out
}

// List returns every scene in insertion order.
func (s *Store) List() []domain.Scene {
	return s.Query(nil)
}

// Get returns a copy of the scene with id.
func (s *Store) Get(id string) (domain.Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Scene{}, false
	}
	return s.scenes[i], true
}

// Len reports the number of scenes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}
