package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Mock repository
// ============================================================================

type mockRepo struct {
	mu         sync.Mutex
	points     map[string][]*domain.SavePoint
	sessions   map[string]*domain.GameSession
	appendErr  error
	deleteErr  error
	appends    int
	failFor    map[string]bool // character IDs whose appends fail
	appendWait time.Duration
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		points:   make(map[string][]*domain.SavePoint),
		sessions: make(map[string]*domain.GameSession),
		failFor:  make(map[string]bool),
	}
}

func (r *mockRepo) AppendSavePoint(_ context.Context, sp *domain.SavePoint) error {
	if r.appendWait > 0 {
		time.Sleep(r.appendWait)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	if r.failFor[sp.CharacterID] {
		return errors.New("disk full")
	}
	r.appends++
	r.points[sp.CharacterID] = append(r.points[sp.CharacterID], sp.Clone())
	return nil
}

func (r *mockRepo) DeleteSavePoint(_ context.Context, characterID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	list := r.points[characterID]
	for i, sp := range list {
		if sp.ID == id {
			r.points[characterID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (r *mockRepo) ListSavePoints(_ context.Context, characterID string) ([]*domain.SavePoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.SavePoint, 0, len(r.points[characterID]))
	for _, sp := range r.points[characterID] {
		out = append(out, sp.Clone())
	}
	return out, nil
}

func (r *mockRepo) ListCharacters(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for c, list := range r.points {
		if len(list) > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *mockRepo) UpsertSession(_ context.Context, s *domain.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *mockRepo) GetSession(_ context.Context, id string) (*domain.GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *mockRepo) ListSessions(_ context.Context, states ...domain.SessionState) ([]*domain.GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.GameSession
	for _, s := range r.sessions {
		if len(states) == 0 || containsState(states, s.State) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func containsState(states []domain.SessionState, s domain.SessionState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func (r *mockRepo) stored(characterID string) []*domain.SavePoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.SavePoint(nil), r.points[characterID]...)
}

// ============================================================================
// Mock collaborators
// ============================================================================

// mockGame implements every collaborator interface over in-memory maps.
type mockGame struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte // kind -> character -> payload
	loadErr  map[string]error             // kind -> error
	applyErr map[string]error             // kind -> error
	applied  map[string]int               // kind -> apply count
	panicOn  string
	level    int
}

func newMockGame() *mockGame {
	return &mockGame{
		data:     make(map[string]map[string][]byte),
		loadErr:  make(map[string]error),
		applyErr: make(map[string]error),
		applied:  make(map[string]int),
		level:    7,
	}
}

func (g *mockGame) set(kind, characterID, payload string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data[kind] == nil {
		g.data[kind] = make(map[string][]byte)
	}
	g.data[kind][characterID] = []byte(payload)
}

func (g *mockGame) get(kind, characterID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(g.data[kind][characterID])
}

func (g *mockGame) load(kind, characterID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.loadErr[kind]; err != nil {
		return nil, err
	}
	b, ok := g.data[kind][characterID]
	if !ok {
		return nil, domain.ErrSubStateNotFound
	}
	return append([]byte(nil), b...), nil
}

func (g *mockGame) apply(kind, characterID string, b []byte) error {
	if g.panicOn == kind {
		panic("collaborator exploded")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.applyErr[kind]; err != nil {
		return err
	}
	if g.data[kind] == nil {
		g.data[kind] = make(map[string][]byte)
	}
	g.data[kind][characterID] = append([]byte(nil), b...)
	g.applied[kind]++
	return nil
}

func (g *mockGame) LoadCharacter(_ context.Context, id string) ([]byte, error) {
	return g.load("character", id)
}
func (g *mockGame) ApplyCharacter(_ context.Context, id string, b []byte) error {
	return g.apply("character", id, b)
}
func (g *mockGame) LoadInventory(_ context.Context, id string) ([]byte, error) {
	return g.load("inventory", id)
}
func (g *mockGame) ApplyInventory(_ context.Context, id string, b []byte) error {
	return g.apply("inventory", id, b)
}
func (g *mockGame) LoadSkills(_ context.Context, id string) ([]byte, error) {
	return g.load("skills", id)
}
func (g *mockGame) ApplySkills(_ context.Context, id string, b []byte) error {
	return g.apply("skills", id, b)
}
func (g *mockGame) LoadQuests(_ context.Context, id string) ([]byte, error) {
	return g.load("quests", id)
}
func (g *mockGame) ApplyQuests(_ context.Context, id string, b []byte) error {
	return g.apply("quests", id, b)
}
func (g *mockGame) DescribeCharacter(context.Context, string) (int, int64, error) {
	return g.level, 1234, nil
}

func (g *mockGame) collaborators() Collaborators {
	return Collaborators{Characters: g, Inventory: g, Skills: g, Quests: g}
}

// seed gives a character data in every collaborator.
func (g *mockGame) seed(characterID string) {
	g.set("character", characterID, `{"name":"Aria","hp":100}`)
	g.set("inventory", characterID, `{"items":["sword","potion"]}`)
	g.set("skills", characterID, `{"fireball":3}`)
	g.set("quests", characterID, `{"main":2}`)
}

// ============================================================================
// Mock metrics
// ============================================================================

type mockMetrics struct {
	mu               sync.Mutex
	started          int
	ended            int
	crashed          int
	saves            map[domain.SaveType]int
	failures         map[domain.SaveType]int
	restoreSuccesses int
	restoreFailures  int
	integrity        int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		saves:    make(map[domain.SaveType]int),
		failures: make(map[domain.SaveType]int),
	}
}

func (m *mockMetrics) SessionStarted()            { m.mu.Lock(); m.started++; m.mu.Unlock() }
func (m *mockMetrics) SessionEnded(time.Duration) { m.mu.Lock(); m.ended++; m.mu.Unlock() }
func (m *mockMetrics) SessionCrashed()            { m.mu.Lock(); m.crashed++; m.mu.Unlock() }
func (m *mockMetrics) SaveCreated(t domain.SaveType) {
	m.mu.Lock()
	m.saves[t]++
	m.mu.Unlock()
}
func (m *mockMetrics) SaveFailed(t domain.SaveType) {
	m.mu.Lock()
	m.failures[t]++
	m.mu.Unlock()
}
func (m *mockMetrics) RestoreCompleted(success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.restoreSuccesses++
	} else {
		m.restoreFailures++
	}
}
func (m *mockMetrics) IntegrityFailure() { m.mu.Lock(); m.integrity++; m.mu.Unlock() }

func (m *mockMetrics) savesOf(t domain.SaveType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[t]
}

func (m *mockMetrics) totals() (started, ended, crashed, saves int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.saves {
		saves += n
	}
	return m.started, m.ended, m.crashed, saves
}

// ============================================================================
// Engine fixture
// ============================================================================

type fixture struct {
	repo     *mockRepo
	game     *mockGame
	metrics  *mockMetrics
	local    *LocalState
	store    *SavePointStore
	sessions *SessionManager
	restorer *RestoreOrchestrator
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMockRepo(),
		game:    newMockGame(),
		metrics: newMockMetrics(),
		local:   NewLocalState(),
	}
	logger := discardLogger()
	f.store = NewSavePointStore(SavePointStoreConfig{
		Repository: f.repo,
		Capturer:   NewCapturer(f.game.collaborators(), f.local, logger),
		Metrics:    f.metrics,
		Logger:     logger,
	})
	f.sessions = NewSessionManager(SessionManagerConfig{
		Repository: f.repo,
		Store:      f.store,
		Metrics:    f.metrics,
		Logger:     logger,
	})
	f.restorer = NewRestoreOrchestrator(RestoreConfig{
		Store:         f.store,
		Collaborators: f.game.collaborators(),
		LocalState:    f.local,
		Metrics:       f.metrics,
		Logger:        logger,
	})
	return f
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
