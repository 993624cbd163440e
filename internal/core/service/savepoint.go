package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/cmap"
)

// DefaultRetentionHorizon is how long non-manual save points survive the sweep.
const DefaultRetentionHorizon = 7 * 24 * time.Hour

var tracer = otel.Tracer("waypoint.service")

// StorageTraits is optionally implemented by a repository to describe how it
// stores save points at rest.
type StorageTraits interface {
	Compressed() bool
	Encrypted() bool
}

// SavePointStoreConfig configures a SavePointStore.
type SavePointStoreConfig struct {
	Repository SavePointRepository
	Capturer   *Capturer
	Verifier   *Verifier
	Mirror     SavePointMirror // optional
	Metrics    Metrics
	Events     *EventBus
	Logger     *slog.Logger

	// RetentionHorizon bounds the age of non-manual save points. Zero uses the default.
	RetentionHorizon time.Duration
}

// SavePointStore owns the per-character save point ledgers.
//
// Each ledger is loaded lazily from the repository and written through on
// every change. A ledger is only mutated while its mutex is held.
type SavePointStore struct {
	repo     SavePointRepository
	capturer *Capturer
	verifier *Verifier
	mirror   SavePointMirror
	metrics  Metrics
	events   *EventBus
	logger   *slog.Logger
	horizon  time.Duration

	ledgers *cmap.Map[string, *ledger]
	now     func() time.Time
}

type ledger struct {
	mu     sync.Mutex
	loaded bool
	points []*domain.SavePoint // oldest first
}

// NewSavePointStore creates a SavePointStore.
func NewSavePointStore(cfg SavePointStoreConfig) *SavePointStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = NewVerifier()
	}
	capturer := cfg.Capturer
	if capturer == nil {
		capturer = NewCapturer(Collaborators{}, nil, logger)
	}
	horizon := cfg.RetentionHorizon
	if horizon <= 0 {
		horizon = DefaultRetentionHorizon
	}
	return &SavePointStore{
		repo:     cfg.Repository,
		capturer: capturer,
		verifier: verifier,
		mirror:   cfg.Mirror,
		metrics:  metricsOrNop(cfg.Metrics),
		events:   cfg.Events,
		logger:   logger,
		horizon:  horizon,
		ledgers:  cmap.New[string, *ledger](),
		now:      time.Now,
	}
}

// ============================================================================
// Create
// ============================================================================

// CreateSavePointRequest describes the save point to take.
type CreateSavePointRequest struct {
	SessionID   string
	CharacterID string
	Type        domain.SaveType
	Description string
	Area        string
	Position    *domain.Position
	Preferences domain.Preferences
	Tags        []string
}

// Create captures, checksums and verifies the character's state, then
// durably appends the save point and applies retention. The call returns only
// after the repository write completed.
func (s *SavePointStore) Create(ctx context.Context, req *CreateSavePointRequest) (*domain.SavePoint, error) {
	// 1. Validate input
	if req.CharacterID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("character_id is required")
	}
	if !domain.ValidSaveType(req.Type) {
		return nil, domain.ErrInvalidArgument.WithDetails("unknown save type " + string(req.Type))
	}

	ctx, span := tracer.Start(ctx, "SavePointStore.Create", trace.WithAttributes(
		attribute.String("character_id", req.CharacterID),
		attribute.String("session_id", req.SessionID),
		attribute.String("save_type", string(req.Type)),
	))
	defer span.End()

	// 2. Capture and checksum
	sp, err := s.build(ctx, req)
	if err != nil {
		s.metrics.SaveFailed(req.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, "build save point")
		return nil, err
	}
	if !sp.Verified {
		s.metrics.IntegrityFailure()
		s.logger.Warn("save point failed verification after capture",
			"save_point_id", sp.ID, "character_id", sp.CharacterID)
	}

	// 3. Append and prune under the character's ledger lock
	l := s.ledgerFor(req.CharacterID)
	l.mu.Lock()
	if err := s.ensureLoaded(ctx, req.CharacterID, l); err != nil {
		l.mu.Unlock()
		s.metrics.SaveFailed(req.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load ledger")
		return nil, err
	}
	if err := s.repo.AppendSavePoint(ctx, sp); err != nil {
		l.mu.Unlock()
		s.metrics.SaveFailed(req.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, "append save point")
		return nil, domain.ErrSaveFailed.WithCause(err)
	}
	l.points = append(l.points, sp)
	pruned := s.enforceCap(ctx, l, req.Preferences.MaxSavePoints)
	l.mu.Unlock()

	span.SetAttributes(
		attribute.String("save_point_id", sp.ID),
		attribute.Int64("size", sp.Size),
		attribute.Int("pruned", pruned),
	)
	s.metrics.SaveCreated(req.Type)

	// 4. Mirror and notify
	if s.mirror != nil && req.Preferences.CloudSync && !req.Preferences.OfflineMode {
		if err := s.mirror.Mirror(ctx, sp); err != nil {
			s.logger.Warn("cloud sync mirror failed", "save_point_id", sp.ID, "error", err)
		}
	}
	s.events.Publish(domain.Event{
		Type:        domain.EventSavePointCreated,
		SessionID:   sp.SessionID,
		CharacterID: sp.CharacterID,
		SavePointID: sp.ID,
		Payload:     sp.Header(),
	})

	s.logger.Debug("save point created",
		"save_point_id", sp.ID,
		"character_id", sp.CharacterID,
		"save_type", sp.Type,
		"verified", sp.Verified,
		"pruned", pruned,
	)
	return sp.Clone(), nil
}

func (s *SavePointStore) build(ctx context.Context, req *CreateSavePointRequest) (*domain.SavePoint, error) {
	id, err := domain.GenerateSavePointID()
	if err != nil {
		return nil, err
	}

	snap, err := s.capturer.Capture(ctx, req.CharacterID).Canonical()
	if err != nil {
		return nil, domain.ErrSaveFailed.WithCause(err)
	}
	sum, err := s.verifier.Checksum(&snap)
	if err != nil {
		return nil, domain.ErrSaveFailed.WithCause(err)
	}
	encoded, err := json.Marshal(&snap)
	if err != nil {
		return nil, domain.ErrSaveFailed.WithCause(err)
	}
	level, xp := s.capturer.Describe(ctx, req.CharacterID)

	sp := &domain.SavePoint{
		ID:          id,
		SessionID:   req.SessionID,
		CharacterID: req.CharacterID,
		CreatedAt:   s.now().UnixMilli(),
		Type:        req.Type,
		Description: req.Description,
		Area:        req.Area,
		Level:       level,
		Experience:  xp,
		Snapshot:    snap,
		Metadata: domain.SaveMetadata{
			FormatVersion: domain.FormatVersion,
			Checksum:      sum,
			Dependencies:  dependenciesOf(&snap),
			Tags:          append([]string{string(req.Type)}, req.Tags...),
		},
		Size: int64(len(encoded)),
	}
	if req.Position != nil {
		sp.Position = *req.Position
	}
	if sp.Area == "" {
		sp.Area = snap.World.CurrentArea
	}
	if traits, ok := s.repo.(StorageTraits); ok {
		sp.Metadata.Compressed = traits.Compressed()
		sp.Metadata.Encrypted = traits.Encrypted()
	}
	sp.Verified = s.verifier.Verify(sp)
	return sp, nil
}

// dependenciesOf lists the collaborator sub-states the snapshot carries.
func dependenciesOf(snap *domain.StateSnapshot) []string {
	var deps []string
	for _, d := range []struct {
		name    string
		payload json.RawMessage
	}{
		{"character", snap.Character},
		{"inventory", snap.Inventory},
		{"skills", snap.Skills},
		{"quests", snap.Quests},
	} {
		if !domain.IsEmptyPayload(d.payload) {
			deps = append(deps, d.name)
		}
	}
	return deps
}

// enforceCap drops the oldest prunable save points while the ledger holds more
// than limit entries. Manual save points and the newest entry are never dropped.
// Caller holds l.mu.
func (s *SavePointStore) enforceCap(ctx context.Context, l *ledger, limit int) int {
	if limit < 1 {
		limit = domain.DefaultMaxSavePoints
	}
	pruned := 0
	for len(l.points) > limit {
		idx := -1
		for i := 0; i < len(l.points)-1; i++ {
			if l.points[i].Type.Prunable() {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		victim := l.points[idx]
		if err := s.repo.DeleteSavePoint(ctx, victim.CharacterID, victim.ID); err != nil {
			s.logger.Warn("retention delete failed", "save_point_id", victim.ID, "error", err)
			break
		}
		l.points = append(l.points[:idx], l.points[idx+1:]...)
		pruned++
	}
	return pruned
}

// ============================================================================
// Queries
// ============================================================================

// List returns the character's save points, oldest first.
func (s *SavePointStore) List(ctx context.Context, characterID string) ([]*domain.SavePoint, error) {
	l := s.ledgerFor(characterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := s.ensureLoaded(ctx, characterID, l); err != nil {
		return nil, err
	}
	out := make([]*domain.SavePoint, len(l.points))
	for i, sp := range l.points {
		out[i] = sp.Clone()
	}
	return out, nil
}

// Get returns one save point, or domain.ErrSavePointNotFound.
func (s *SavePointStore) Get(ctx context.Context, characterID, savePointID string) (*domain.SavePoint, error) {
	l := s.ledgerFor(characterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := s.ensureLoaded(ctx, characterID, l); err != nil {
		return nil, err
	}
	for _, sp := range l.points {
		if sp.ID == savePointID {
			return sp.Clone(), nil
		}
	}
	return nil, domain.ErrSavePointNotFound.WithDetails(savePointID)
}

// LatestVerified returns the newest save point whose checksum still matches,
// or domain.ErrNoValidSavePoint.
func (s *SavePointStore) LatestVerified(ctx context.Context, characterID string) (*domain.SavePoint, error) {
	l := s.ledgerFor(characterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := s.ensureLoaded(ctx, characterID, l); err != nil {
		return nil, err
	}
	for i := len(l.points) - 1; i >= 0; i-- {
		sp := l.points[i]
		sp.Verified = s.verifier.Verify(sp)
		if sp.Verified {
			return sp.Clone(), nil
		}
	}
	return nil, domain.ErrNoValidSavePoint
}

// Verifier returns the verifier used for checksums.
func (s *SavePointStore) Verifier() *Verifier {
	return s.verifier
}

// ============================================================================
// Retention sweep
// ============================================================================

// Sweep deletes non-manual save points older than the retention horizon and
// returns how many were removed.
func (s *SavePointStore) Sweep(ctx context.Context) (int, error) {
	characters, err := s.repo.ListCharacters(ctx)
	if err != nil {
		return 0, domain.ErrStorage.WithCause(err)
	}
	seen := make(map[string]struct{}, len(characters))
	for _, c := range characters {
		seen[c] = struct{}{}
	}
	for _, c := range s.ledgers.Keys() {
		if _, ok := seen[c]; !ok {
			characters = append(characters, c)
		}
	}
	sort.Strings(characters)

	cutoff := s.now().Add(-s.horizon).UnixMilli()
	removed := 0
	var errs []error
	for _, characterID := range characters {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		n, err := s.sweepCharacter(ctx, characterID, cutoff)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if removed > 0 {
		s.logger.Info("retention sweep removed save points", "removed", removed, "characters", len(characters))
	}
	return removed, errors.Join(errs...)
}

func (s *SavePointStore) sweepCharacter(ctx context.Context, characterID string, cutoff int64) (int, error) {
	l := s.ledgerFor(characterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := s.ensureLoaded(ctx, characterID, l); err != nil {
		return 0, err
	}

	kept := l.points[:0]
	removed := 0
	var firstErr error
	for _, sp := range l.points {
		if sp.Type.Prunable() && sp.CreatedAt < cutoff {
			if err := s.repo.DeleteSavePoint(ctx, characterID, sp.ID); err != nil {
				if firstErr == nil {
					firstErr = domain.ErrStorage.WithCause(err)
				}
				kept = append(kept, sp)
				continue
			}
			removed++
			continue
		}
		kept = append(kept, sp)
	}
	for i := len(kept); i < len(l.points); i++ {
		l.points[i] = nil
	}
	l.points = kept
	return removed, firstErr
}

// ============================================================================
// Ledger helpers
// ============================================================================

func (s *SavePointStore) ledgerFor(characterID string) *ledger {
	l, _ := s.ledgers.GetOrSet(characterID, &ledger{})
	return l
}

// ensureLoaded hydrates the ledger from the repository. Caller holds l.mu.
func (s *SavePointStore) ensureLoaded(ctx context.Context, characterID string, l *ledger) error {
	if l.loaded {
		return nil
	}
	points, err := s.repo.ListSavePoints(ctx, characterID)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].CreatedAt != points[j].CreatedAt {
			return points[i].CreatedAt < points[j].CreatedAt
		}
		return points[i].ID < points[j].ID
	})
	for _, sp := range points {
		sp.Verified = s.verifier.Verify(sp)
	}
	l.points = points
	l.loaded = true
	return nil
}
