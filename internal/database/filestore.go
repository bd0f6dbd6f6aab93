package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"checador-bot/internal/identity"
	"checador-bot/internal/models"
)

const (
	usersFile     = "users.json"
	logsFile      = "logs.json"
	locationsFile = "locations.json"
)

// FileStore keeps each collection as one JSON array under dir. Writes
// rewrite the whole file; reads that fail degrade to an empty
// collection so callers never crash on a bad file.
type FileStore struct {
	dir string
	mu  sync.Mutex
	log *zap.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func readCollection[T any](s *FileStore, file string) []T {
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Error("collection read failed", zap.String("file", file), zap.Error(err))
		}
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Error("collection corrupt", zap.String("file", file), zap.Error(err))
		return nil
	}
	return out
}

func writeCollection[T any](s *FileStore, file string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", file, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, file), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

// Users

func (s *FileStore) Users(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection[models.User](s, usersFile), nil
}

func (s *FileStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	users, _ := s.Users(ctx)
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	users, _ := s.Users(ctx)
	for i := range users {
		if identity.SamePhone(users[i].Phone, phone) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// Locations

func (s *FileStore) Locations(ctx context.Context) ([]models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection[models.Location](s, locationsFile), nil
}

func (s *FileStore) LocationByID(ctx context.Context, id string) (*models.Location, error) {
	locations, _ := s.Locations(ctx)
	for i := range locations {
		if locations[i].ID == id {
			return &locations[i], nil
		}
	}
	return nil, ErrNotFound
}

// Logs

func (s *FileStore) Logs(ctx context.Context) ([]models.AttendanceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection[models.AttendanceLog](s, logsFile), nil
}

func (s *FileStore) AppendLog(ctx context.Context, log *models.AttendanceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := readCollection[models.AttendanceLog](s, logsFile)
	logs = append(logs, *log)
	return writeCollection(s, logsFile, logs)
}

func (s *FileStore) LastLogForUser(ctx context.Context, userID string) (*models.AttendanceLog, error) {
	logs, _ := s.Logs(ctx)
	var userLogs []models.AttendanceLog
	for _, l := range logs {
		if l.UserID == userID {
			userLogs = append(userLogs, l)
		}
	}
	if len(userLogs) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(userLogs, func(i, j int) bool {
		return userLogs[i].Timestamp.After(userLogs[j].Timestamp)
	})
	return &userLogs[0], nil
}

func (s *FileStore) DeleteLog(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := readCollection[models.AttendanceLog](s, logsFile)
	kept := logs[:0]
	for _, l := range logs {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	return writeCollection(s, logsFile, kept)
}
