// Package identity resolves anonymized contact identifiers to stable
// phone-based ones and normalizes phone numbers.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"checador-bot/internal/transport"
	"checador-bot/pkg/logger"
)

// Resolver maps anonymized ids to phone-style ids. The map is one
// directional and only records pairs where both sides had the expected
// shape. The whole map is persisted as a flat JSON object and loaded
// back at startup.
type Resolver struct {
	mu   sync.RWMutex
	m    map[string]string
	path string
	log  *zap.Logger
}

func NewResolver(path string, log *zap.Logger) *Resolver {
	return &Resolver{
		m:    make(map[string]string),
		path: path,
		log:  log,
	}
}

// Load reads the persisted map. A missing file is not an error; a
// corrupt file degrades to an empty map.
func (r *Resolver) Load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read identity map: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		r.log.Warn("identity map corrupt, starting empty", zap.Error(err))
		return nil
	}

	r.mu.Lock()
	for lid, phone := range entries {
		r.m[lid] = phone
	}
	size := len(r.m)
	r.mu.Unlock()

	r.log.Info("identity map loaded", zap.Int("entries", size))
	return nil
}

// Resolve maps an identifier to its stable phone-style form.
// Identifiers that are not anonymized are already stable and come back
// unchanged.
func (r *Resolver) Resolve(jid string) (string, bool) {
	if !IsAnonymized(jid) {
		return jid, true
	}
	r.mu.RLock()
	phone, ok := r.m[jid]
	r.mu.RUnlock()
	return phone, ok
}

// RegisterPair records an observed (anonymized, phone) pair. Entries
// with the wrong shape on either side are dropped. Returns true when a
// new mapping was learned.
func (r *Resolver) RegisterPair(lid, phoneJID string) bool {
	if lid == "" || phoneJID == "" {
		return false
	}
	if !IsAnonymized(lid) || !IsPhoneJID(phoneJID) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.m[lid]
	r.m[lid] = phoneJID
	if !existed {
		r.log.Info("new identity pair registered",
			zap.String(logger.FieldJID, lid),
			zap.String(logger.FieldPhone, phoneJID))
	}
	return !existed
}

// HandleContactsSync ingests a contact-sync batch. Pairs are extracted
// from two payload shapes: an explicit anonymized-id field next to a
// phone-style id, and a bare phone field that needs reconstruction.
// The map is flushed only when the batch taught us something new.
func (r *Resolver) HandleContactsSync(contacts []transport.Contact) {
	learned := 0
	for _, c := range contacts {
		if c.LID != "" && IsPhoneJID(c.ID) {
			if r.RegisterPair(c.LID, c.ID) {
				learned++
			}
		}
		if c.LID != "" && c.Phone != "" {
			if r.RegisterPair(c.LID, JIDFromPhone(c.Phone)) {
				learned++
			}
		}
	}

	if learned > 0 {
		r.log.Info("contact sync ingested",
			zap.Int("new", learned), zap.Int("total", r.Size()))
		if err := r.flush(); err != nil {
			r.log.Error("identity map flush failed", zap.Error(err))
		}
	}
}

// Size returns the number of known pairs.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// flush rewrites the whole map. There are no partial writes; the last
// full snapshot wins.
func (r *Resolver) flush() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.m, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal identity map: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity map dir: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write identity map: %w", err)
	}
	return nil
}
