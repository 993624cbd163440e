package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// DefaultCategoryTimeout bounds how long one restore category may take.
const DefaultCategoryTimeout = 5 * time.Second

// RestoreConfig configures a RestoreOrchestrator.
type RestoreConfig struct {
	Store         *SavePointStore
	Collaborators Collaborators
	LocalState    *LocalState
	Metrics       Metrics
	Events        *EventBus
	Logger        *slog.Logger

	TrustThreshold  float64
	CategoryTimeout time.Duration
}

// RestoreOrchestrator applies save points back onto the collaborators and
// local state, one category at a time.
type RestoreOrchestrator struct {
	store   *SavePointStore
	collabs Collaborators
	local   *LocalState
	metrics Metrics
	events  *EventBus
	logger  *slog.Logger
	trust   float64
	timeout time.Duration
	clock   func() time.Time
}

// NewRestoreOrchestrator creates a RestoreOrchestrator.
func NewRestoreOrchestrator(cfg RestoreConfig) *RestoreOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trust := cfg.TrustThreshold
	if trust <= 0 || trust > 1 {
		trust = DefaultTrustThreshold
	}
	timeout := cfg.CategoryTimeout
	if timeout <= 0 {
		timeout = DefaultCategoryTimeout
	}
	local := cfg.LocalState
	if local == nil {
		local = NewLocalState()
	}
	return &RestoreOrchestrator{
		store:   cfg.Store,
		collabs: cfg.Collaborators,
		local:   local,
		metrics: metricsOrNop(cfg.Metrics),
		events:  cfg.Events,
		logger:  logger,
		trust:   trust,
		timeout: timeout,
		clock:   time.Now,
	}
}

// errEmptyCategory marks a category whose payload is empty; it is skipped, not failed.
var errEmptyCategory = errors.New("empty payload")

func enabledCount(opts domain.RestoreOptions) int {
	n := 0
	for _, c := range domain.RestoreOrder {
		if opts.Enabled(c) {
			n++
		}
	}
	return n
}

// Restore applies the enabled categories of a save point.
//
// Only an unknown save point, or an integrity score below the trust threshold
// without SkipCorrupted, fail the whole call. Category failures are isolated
// and reported in the result.
func (o *RestoreOrchestrator) Restore(ctx context.Context, characterID, savePointID string, opts domain.RestoreOptions) *domain.RestoreResult {
	start := o.clock()
	res := domain.NewRestoreResult(savePointID)

	ctx, span := tracer.Start(ctx, "RestoreOrchestrator.Restore", trace.WithAttributes(
		attribute.String("character_id", characterID),
		attribute.String("save_point_id", savePointID),
		attribute.Bool("skip_corrupted", opts.SkipCorrupted),
	))
	defer span.End()

	defer func() {
		res.LoadTime = o.clock().Sub(start)
		o.metrics.RestoreCompleted(res.Success, res.LoadTime)
		span.SetAttributes(
			attribute.Bool("success", res.Success),
			attribute.Int("restored", len(res.Restored)),
			attribute.Int("errors", len(res.Errors)),
			attribute.Float64("data_integrity", res.DataIntegrity),
		)
		if !res.Success {
			span.SetStatus(codes.Error, "restore failed")
		}
		o.events.Publish(domain.Event{
			Type:        domain.EventGameRestored,
			CharacterID: characterID,
			SavePointID: savePointID,
			Payload:     res,
		})
	}()

	// 1. Locate the save point
	sp, err := o.store.Get(ctx, characterID, savePointID)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	// 2. Integrity gate; nothing is touched when no category is enabled
	res.DataIntegrity = o.store.Verifier().Score(sp)
	if res.DataIntegrity < o.trust {
		o.metrics.IntegrityFailure()
		if !opts.SkipCorrupted && enabledCount(opts) > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"integrity score %.2f below threshold %.2f", res.DataIntegrity, o.trust))
			return res
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"restoring despite integrity score %.2f", res.DataIntegrity))
	}

	// 3. Categories, each isolated
	aborted := false
	for _, cat := range domain.RestoreOrder {
		if !opts.Enabled(cat) {
			continue
		}
		if aborted {
			res.Skipped = append(res.Skipped, cat)
			continue
		}
		err := o.applyCategory(ctx, cat, sp, opts.ValidateData)
		switch {
		case err == nil:
			res.Restored = append(res.Restored, cat)
		case errors.Is(err, errEmptyCategory):
			res.Skipped = append(res.Skipped, cat)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: nothing to restore", cat))
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", cat, err))
			o.logger.Warn("restore category failed",
				"character_id", characterID, "save_point_id", savePointID, "category", cat, "error", err)
			if !opts.SkipCorrupted {
				aborted = true
			}
		}
	}

	// 4. Outcome
	res.Success = len(res.Errors) == 0 ||
		(opts.SkipCorrupted && (len(res.Restored) > 0 || len(res.Skipped) > 0))
	return res
}

// AutoRestore restores every category from the newest verified save point.
func (o *RestoreOrchestrator) AutoRestore(ctx context.Context, characterID string) *domain.RestoreResult {
	sp, err := o.store.LatestVerified(ctx, characterID)
	if err != nil {
		res := domain.NewRestoreResult("")
		if domain.IsDomainError(err, domain.ErrNoValidSavePoint.Code) {
			res.Errors = append(res.Errors, domain.ErrNoValidSavePoint.Message)
		} else {
			res.Errors = append(res.Errors, err.Error())
		}
		o.metrics.RestoreCompleted(false, 0)
		return res
	}
	return o.Restore(ctx, characterID, sp.ID, domain.FullRestoreOptions())
}

// applyCategory runs one category with its own timeout and panic boundary.
func (o *RestoreOrchestrator) applyCategory(ctx context.Context, cat domain.RestoreCategory, sp *domain.SavePoint, validate bool) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- o.apply(ctx, cat, sp, validate)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out after %s", o.timeout)
	}
}

func (o *RestoreOrchestrator) apply(ctx context.Context, cat domain.RestoreCategory, sp *domain.SavePoint, validate bool) error {
	snap := &sp.Snapshot
	switch cat {
	case domain.CategoryCharacter:
		if domain.IsEmptyPayload(snap.Character) && domain.IsEmptyPayload(snap.Skills) {
			return errEmptyCategory
		}
		if err := applyPayload(ctx, sp.CharacterID, snap.Character, validate, o.collabs.Characters, applyCharacter); err != nil {
			return err
		}
		return applyPayload(ctx, sp.CharacterID, snap.Skills, validate, o.collabs.Skills, applySkills)
	case domain.CategoryInventory:
		if domain.IsEmptyPayload(snap.Inventory) {
			return errEmptyCategory
		}
		return applyPayload(ctx, sp.CharacterID, snap.Inventory, validate, o.collabs.Inventory, applyInventory)
	case domain.CategoryProgress:
		if domain.IsEmptyPayload(snap.Quests) {
			return errEmptyCategory
		}
		return applyPayload(ctx, sp.CharacterID, snap.Quests, validate, o.collabs.Quests, applyQuests)
	case domain.CategorySettings:
		o.local.SetSettings(sp.CharacterID, snap.Settings, snap.Flags)
	case domain.CategoryWorld:
		o.local.SetWorld(sp.CharacterID, snap.World)
	case domain.CategoryUI:
		o.local.SetUI(sp.CharacterID, snap.UI)
	default:
		return fmt.Errorf("unknown category %q", cat)
	}
	return nil
}

func applyCharacter(ctx context.Context, s CharacterStore, id string, b []byte) error {
	return s.ApplyCharacter(ctx, id, b)
}

func applyInventory(ctx context.Context, s InventoryStore, id string, b []byte) error {
	return s.ApplyInventory(ctx, id, b)
}

func applySkills(ctx context.Context, s SkillStore, id string, b []byte) error {
	return s.ApplySkills(ctx, id, b)
}

func applyQuests(ctx context.Context, s QuestStore, id string, b []byte) error {
	return s.ApplyQuests(ctx, id, b)
}

// applyPayload hands an opaque payload back to its owning collaborator.
func applyPayload[S comparable](ctx context.Context, characterID string, payload json.RawMessage, validate bool, store S, fn func(context.Context, S, string, []byte) error) error {
	if domain.IsEmptyPayload(payload) {
		return nil
	}
	var none S
	if store == none {
		return fmt.Errorf("no collaborator registered")
	}
	if validate && !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return fn(ctx, store, characterID, []byte(payload))
}
