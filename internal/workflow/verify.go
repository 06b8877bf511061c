package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipwatch/internal/logging"
)

// Verification states.
const (
	VerifyProcessing = "processing"
	VerifyCompleted  = "completed"
	VerifyFailed     = "failed"
)

// VerifyState is one verification request.
type VerifyState struct {
	ID         string
	VideoPath  string
	Status     string
	Progress   int
	Similarity float64
	Error      string
	UpdatedAt  time.Time
}

// VerifyStore keeps verification state between the request that starts one
// and the polls that follow. Implementations must be safe for concurrent use.
type VerifyStore interface {
	Put(state VerifyState)
	Get(id string) (VerifyState, bool)
	// Sweep drops entries not updated since cutoff and returns how many.
	Sweep(cutoff time.Time) int
}

// DefaultVerifyTTL is used when the configured TTL is not positive.
const DefaultVerifyTTL = time.Hour

// MemoryVerifyStore is a VerifyStore backed by a map with a TTL.
type MemoryVerifyStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]VerifyState
}

// NewMemoryVerifyStore creates an empty store.
func NewMemoryVerifyStore(ttl time.Duration) *MemoryVerifyStore {
	if ttl <= 0 {
		ttl = DefaultVerifyTTL
	}
	return &MemoryVerifyStore{ttl: ttl, now: time.Now, entries: make(map[string]VerifyState)}
}

// Put stores state, stamping UpdatedAt.
func (s *MemoryVerifyStore) Put(state VerifyState) {
	state.UpdatedAt = s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.ID] = state
}

// Get returns a live entry. Expired entries are reported missing.
func (s *MemoryVerifyStore) Get(id string) (VerifyState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.entries[id]
	if !ok || s.now().Sub(state.UpdatedAt) > s.ttl {
		return VerifyState{}, false
	}
	return state, true
}

// Sweep implements VerifyStore.
func (s *MemoryVerifyStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, state := range s.entries {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// TTL returns the retention of finished entries.
func (s *MemoryVerifyStore) TTL() time.Duration {
	return s.ttl
}

// StartVerify registers a verification of videoPath and runs it in the
// background. The caller polls Verification with the returned id.
func (m *Manager) StartVerify(ctx context.Context, videoPath string) string {
	id := uuid.NewString()
	m.verify.Put(VerifyState{ID: id, VideoPath: videoPath, Status: VerifyProcessing})

	m.mu.RLock()
	runCtx := m.runCtx
	m.mu.RUnlock()
	if runCtx == nil {
		runCtx = context.WithoutCancel(ctx)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		similarity, err := m.engine.Verify(runCtx, videoPath)
		state := VerifyState{ID: id, VideoPath: videoPath}
		if err != nil {
			state.Status = VerifyFailed
			state.Error = failureMessage(err)
			m.logger.Warn("verification failed",
				logging.String(logging.FieldSourcePath, videoPath),
				logging.String(logging.FieldEventType, "verify_failed"),
				logging.String(logging.FieldErrorHint, failureHint(err)),
				logging.String(logging.FieldImpact, "verification result unavailable"),
				logging.Error(err),
			)
		} else {
			state.Status = VerifyCompleted
			state.Progress = 100
			state.Similarity = similarity
		}
		m.verify.Put(state)
	}()
	return id
}

// Verification returns the state of a verification started with StartVerify.
func (m *Manager) Verification(id string) (VerifyState, bool) {
	return m.verify.Get(id)
}
