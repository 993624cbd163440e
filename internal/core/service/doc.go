// Package service implements the session and save-state continuity engine.
//
// Data flows one way for capture (SessionManager -> Capturer -> Verifier ->
// SavePointStore) and the reverse for recovery (SavePointStore -> Verifier ->
// RestoreOrchestrator -> collaborators). This package contains:
//
//   - SessionManager: session lifecycle, statistics and per-session save locks
//   - Capturer: assembles a StateSnapshot from collaborators and local state
//   - Verifier: snapshot checksums and integrity scores
//   - SavePointStore: per-character ledgers, retention and the age sweep
//   - RestoreOrchestrator: per-category restore with failure isolation
//   - Scheduler: periodic auto saves, retention cron and the emergency save
//   - EventBus: asynchronous lifecycle notifications
//
// Storage is reached only through SavePointRepository and SessionRepository;
// collaborators only through CharacterStore, InventoryStore, SkillStore and
// QuestStore.
package service
