package history

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxActivity bounds the activity log kept in memory and on disk.
const maxActivity = 1000

// ErrGameNotFound is returned for an unknown game ID.
var ErrGameNotFound = errors.New("game not found")

// Tracker stores finished games as one JSON file each, plus an activity log.
type Tracker struct {
	historyPath  string
	retention    int
	activityPath string
	now          func() time.Time

	gamesMu sync.Mutex

	activityHistory *ActivityHistory
	activityMu      sync.RWMutex
	saveMu          sync.Mutex
}

// NewTracker creates a tracker writing under historyPath. retention is the
// number of games kept; 0 keeps every game.
func NewTracker(historyPath string, retention int) (*Tracker, error) {
	if retention < 0 {
		return nil, fmt.Errorf("retention must not be negative, got %d", retention)
	}
	if err := os.MkdirAll(historyPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	tracker := &Tracker{
		historyPath:     historyPath,
		retention:       retention,
		activityPath:    filepath.Join(historyPath, "activity.json"),
		now:             time.Now,
		activityHistory: &ActivityHistory{Entries: make([]ActivityEntry, 0)},
	}

	if err := tracker.loadActivityHistory(); err != nil {
		log.Printf("WARN: failed to load activity history: %v", err)
	}
	return tracker, nil
}

// RecordGame saves a finished game and logs it in the activity history.
func (t *Tracker) RecordGame(rec GameRecord) error {
	if err := validGameID(rec.GameID); err != nil {
		return err
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = t.now()
	}

	t.gamesMu.Lock()
	err := t.saveGame(&rec)
	if err == nil && t.retention > 0 {
		if cerr := t.cleanupOldGames(); cerr != nil {
			log.Printf("WARN: failed to cleanup old games: %v", cerr)
		}
	}
	t.gamesMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", rec.GameID, err)
	}

	t.AddActivity(ActivityGameFinished,
		fmt.Sprintf("Game finished: %d/%d correct (%d%%)", rec.CorrectAnswers, rec.TotalRounds, rec.Percentage),
		map[string]interface{}{
			"game_id":         rec.GameID,
			"correct_answers": rec.CorrectAnswers,
			"total_rounds":    rec.TotalRounds,
			"percentage":      rec.Percentage,
		})
	return nil
}

// GetGame loads a finished game by ID.
func (t *Tracker) GetGame(gameID string) (*GameRecord, error) {
	if err := validGameID(gameID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(t.gamePath(gameID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	var rec GameRecord
	if err := rec.FromJSON(data); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListGames returns the IDs of every stored game, newest first.
func (t *Tracker) ListGames() ([]string, error) {
	games, err := t.loadAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.GameID
	}
	return ids, nil
}

// Games returns up to limit stored games, newest first. limit <= 0 returns all.
func (t *Tracker) Games(limit int) ([]GameRecord, error) {
	games, err := t.loadAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(games) {
		games = games[:limit]
	}
	return games, nil
}

// GetActivityHistory returns the most recent limit entries; limit <= 0 returns all.
func (t *Tracker) GetActivityHistory(limit int) *ActivityHistory {
	t.activityMu.RLock()
	defer t.activityMu.RUnlock()

	entries := t.activityHistory.Entries
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	return &ActivityHistory{Entries: append([]ActivityEntry(nil), entries...)}
}

// AddActivity appends an entry to the activity log and persists it.
func (t *Tracker) AddActivity(activityType, message string, details map[string]interface{}) {
	entry := ActivityEntry{
		ID:        uuid.NewString(),
		Timestamp: t.now(),
		Type:      activityType,
		Message:   message,
		Details:   details,
	}

	t.activityMu.Lock()
	t.activityHistory.Entries = append(t.activityHistory.Entries, entry)
	if len(t.activityHistory.Entries) > maxActivity {
		t.activityHistory.Entries = t.activityHistory.Entries[len(t.activityHistory.Entries)-maxActivity:]
	}
	t.activityMu.Unlock()

	if err := t.saveActivityHistory(); err != nil {
		log.Printf("WARN: failed to save activity history: %v", err)
	}
}

// Close saves the activity log.
func (t *Tracker) Close() error {
	return t.saveActivityHistory()
}

func (t *Tracker) gamePath(gameID string) string {
	return filepath.Join(t.historyPath, fmt.Sprintf("game_%s.json", gameID))
}

func validGameID(gameID string) error {
	if gameID == "" || strings.ContainsAny(gameID, `/\`) || strings.Contains(gameID, "..") {
		return fmt.Errorf("invalid game ID: %q", gameID)
	}
	return nil
}

func (t *Tracker) saveGame(rec *GameRecord) error {
	data, err := rec.ToJSON()
	if err != nil {
		return err
	}
	return writeFileAtomic(t.gamePath(rec.GameID), data)
}

// loadAll reads every game file, newest first. Unreadable files are skipped.
func (t *Tracker) loadAll() ([]GameRecord, error) {
	entries, err := os.ReadDir(t.historyPath)
	if err != nil {
		return nil, err
	}

	var games []GameRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "game_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.historyPath, name))
		if err != nil {
			continue
		}
		var rec GameRecord
		if err := rec.FromJSON(data); err != nil {
			log.Printf("WARN: skipping unreadable game file %s: %v", name, err)
			continue
		}
		games = append(games, rec)
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].FinishedAt.After(games[j].FinishedAt)
	})
	return games, nil
}

func (t *Tracker) cleanupOldGames() error {
	games, err := t.loadAll()
	if err != nil {
		return err
	}
	if len(games) <= t.retention {
		return nil
	}
	for _, g := range games[t.retention:] {
		if err := os.Remove(t.gamePath(g.GameID)); err != nil {
			log.Printf("WARN: failed to remove old game %s: %v", g.GameID, err)
		}
	}
	return nil
}

func (t *Tracker) loadActivityHistory() error {
	data, err := os.ReadFile(t.activityPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var history ActivityHistory
	if err := history.FromJSON(data); err != nil {
		return err
	}

	t.activityMu.Lock()
	t.activityHistory = &history
	t.activityMu.Unlock()
	return nil
}

func (t *Tracker) saveActivityHistory() error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.activityMu.RLock()
	data, err := t.activityHistory.ToJSON()
	t.activityMu.RUnlock()
	if err != nil {
		return err
	}
	return writeFileAtomic(t.activityPath, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
