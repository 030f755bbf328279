// Package session implements the in-memory Session container: the
// per-analysis scope that owns AdSummaries, AccountBaselines,
// Anomalies, Evidence, RootCauseVerdicts, and Recommendations between
// the analyze/recommend/execute operations.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adinsight/adinsight/internal/adierrors"
	"github.com/adinsight/adinsight/pkg/types"
)

// Session is a scoped, TTL-bounded container for one analysis run.
// All derived data is written through a single serialized path
// (mu.Lock in every setter); reads of already-computed fields may
// proceed concurrently.
type Session struct {
	mu sync.RWMutex

	id         string
	tenant     string
	windowDays int
	expiresAt  time.Time
	ttl        time.Duration

	summaries       []types.AdSummary
	summaryByAdID   map[string]types.AdSummary
	baselines       map[types.Metric]types.AccountBaseline
	anomalies       []types.Anomaly
	verdicts        map[string]types.RootCauseVerdict // keyed by AdID
	recommendations []types.Recommendation
}

// New creates a Session with a fresh UUID identifier and the given
// idle TTL.
func New(tenant string, windowDays int, ttl time.Duration) *Session {
	return &Session{
		id:            uuid.NewString(),
		tenant:        tenant,
		windowDays:    windowDays,
		ttl:           ttl,
		expiresAt:     time.Now().Add(ttl),
		summaryByAdID: make(map[string]types.AdSummary),
		baselines:     make(map[types.Metric]types.AccountBaseline),
		verdicts:      make(map[string]types.RootCauseVerdict),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Tenant() string   { return s.tenant }
func (s *Session) WindowDays() int  { return s.windowDays }

// Expired reports whether the session's idle TTL has elapsed as of
// now.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.After(s.expiresAt)
}

// Touch resets the idle TTL countdown from now, called on every
// operation that names this session.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = now.Add(s.ttl)
}

// SetBaseline freezes the AccountBaseline computed for one metric.
func (s *Session) SetBaseline(baseline types.AccountBaseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[baseline.Metric] = baseline
}

// Baselines returns a copy of the frozen per-metric baselines.
func (s *Session) Baselines() map[types.Metric]types.AccountBaseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.Metric]types.AccountBaseline, len(s.baselines))
	for k, v := range s.baselines {
		out[k] = v
	}
	return out
}

// SetSummaries freezes the AdSummary set for this session.
func (s *Session) SetSummaries(summaries []types.AdSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = summaries
	s.summaryByAdID = make(map[string]types.AdSummary, len(summaries))
	for _, summary := range summaries {
		s.summaryByAdID[summary.AdID] = summary
	}
}

// Summaries returns the frozen AdSummary set.
func (s *Session) Summaries() []types.AdSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries
}

// KnownAdID reports whether adID still names an ad within the
// session's frozen AdSummary set — used by the Execution Simulator to
// detect an ad that aged out between recommend and execute.
func (s *Session) KnownAdID(adID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.summaryByAdID[adID]
	return ok
}

// SetAnomalies freezes the detected Anomaly list.
func (s *Session) SetAnomalies(anomalies []types.Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = anomalies
}

// Anomalies returns the frozen Anomaly list.
func (s *Session) Anomalies() []types.Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anomalies
}

// SetVerdict records the RootCauseVerdict for one anomalous ad.
func (s *Session) SetVerdict(verdict types.RootCauseVerdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[verdict.AnomalyAdID] = verdict
}

// Verdict looks up a previously recorded RootCauseVerdict by ad
// identity.
func (s *Session) Verdict(adID string) (types.RootCauseVerdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[adID]
	return v, ok
}

// SetRecommendations freezes the Recommendation list.
func (s *Session) SetRecommendations(recommendations []types.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = recommendations
}

// Recommendations returns the frozen Recommendation list — also
// satisfies pkg/execution.SessionView.
func (s *Session) Recommendations() []types.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recommendations
}

// Store is a process-wide, TTL-evicting registry of live Sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put registers a new Session.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID()] = s
}

// Get resolves a session by identifier, evicting and failing with
// SessionExpired if its TTL has elapsed.
func (st *Store) Get(sessionID string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, adierrors.SessionExpired(sessionID)
	}
	if s.Expired(time.Now()) {
		delete(st.sessions, sessionID)
		return nil, adierrors.SessionExpired(sessionID)
	}
	return s, nil
}

// Release explicitly destroys a session ahead of its TTL.
func (st *Store) Release(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, sessionID)
}

// Count returns the number of live (non-evicted) sessions; expired
// entries are not proactively swept, only evicted on next Get.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
