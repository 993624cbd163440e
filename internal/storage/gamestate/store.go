// Package gamestate reads and writes collaborator sub-state kept in Redis.
//
// Game servers publish each character's serialized sheet, inventory, skills
// and quest progress under <prefix>state:<category>:<characterID>. Waypoint
// captures from those keys and writes restored payloads back to them.
package gamestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/core/service"
)

// Categories stored by Stores.
const (
	CategoryCharacter = "character"
	CategoryInventory = "inventory"
	CategorySkills    = "skills"
	CategoryQuests    = "quests"
)

// Config holds the Redis connection for the state keys.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix is the key prefix (default: "waypoint:").
	Prefix string
}

// Stores implements every collaborator interface over one Redis client.
type Stores struct {
	client *redis.Client
	prefix string
}

// New connects to Redis.
func New(cfg Config) (*Stores, error) {
	if cfg.Addr == "" {
		return nil, errors.New("gamestate: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gamestate: redis ping failed: %w", err)
	}
	return NewFromClient(client, cfg.Prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, prefix string) *Stores {
	if prefix == "" {
		prefix = "waypoint:"
	}
	return &Stores{client: client, prefix: prefix}
}

// Collaborators returns s in every collaborator slot.
func (s *Stores) Collaborators() service.Collaborators {
	return service.Collaborators{Characters: s, Inventory: s, Skills: s, Quests: s}
}

// Key returns the Redis key holding one category of a character's state.
func (s *Stores) Key(category, characterID string) string {
	return s.prefix + "state:" + category + ":" + characterID
}

func (s *Stores) load(ctx context.Context, category, characterID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.Key(category, characterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSubStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gamestate: load %s: %w", category, err)
	}
	return data, nil
}

func (s *Stores) apply(ctx context.Context, category, characterID string, data []byte) error {
	if err := s.client.Set(ctx, s.Key(category, characterID), data, 0).Err(); err != nil {
		return fmt.Errorf("gamestate: apply %s: %w", category, err)
	}
	return nil
}

func (s *Stores) LoadCharacter(ctx context.Context, characterID string) ([]byte, error) {
	return s.load(ctx, CategoryCharacter, characterID)
}

func (s *Stores) ApplyCharacter(ctx context.Context, characterID string, data []byte) error {
	return s.apply(ctx, CategoryCharacter, characterID, data)
}

func (s *Stores) LoadInventory(ctx context.Context, characterID string) ([]byte, error) {
	return s.load(ctx, CategoryInventory, characterID)
}

func (s *Stores) ApplyInventory(ctx context.Context, characterID string, data []byte) error {
	return s.apply(ctx, CategoryInventory, characterID, data)
}

func (s *Stores) LoadSkills(ctx context.Context, characterID string) ([]byte, error) {
	return s.load(ctx, CategorySkills, characterID)
}

func (s *Stores) ApplySkills(ctx context.Context, characterID string, data []byte) error {
	return s.apply(ctx, CategorySkills, characterID, data)
}

func (s *Stores) LoadQuests(ctx context.Context, characterID string) ([]byte, error) {
	return s.load(ctx, CategoryQuests, characterID)
}

func (s *Stores) ApplyQuests(ctx context.Context, characterID string, data []byte) error {
	return s.apply(ctx, CategoryQuests, characterID, data)
}

// DescribeCharacter reads "level" and "experience" from the character sheet.
// Sheets without them describe as zero.
func (s *Stores) DescribeCharacter(ctx context.Context, characterID string) (int, int64, error) {
	data, err := s.LoadCharacter(ctx, characterID)
	if err != nil {
		return 0, 0, err
	}
	var sheet struct {
		Level      int   `json:"level"`
		Experience int64 `json:"experience"`
	}
	if err := json.Unmarshal(data, &sheet); err != nil {
		return 0, 0, nil
	}
	return sheet.Level, sheet.Experience, nil
}

// Close closes the Redis client.
func (s *Stores) Close() error {
	return s.client.Close()
}
