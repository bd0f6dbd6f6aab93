package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checador-bot/internal/transport"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(filepath.Join(t.TempDir(), "lid_map.json"), zap.NewNop())
}

func TestResolvePassthrough(t *testing.T) {
	r := newTestResolver(t)
	jid, ok := r.Resolve("5219991234567@s.whatsapp.net")
	assert.True(t, ok)
	assert.Equal(t, "5219991234567@s.whatsapp.net", jid)
}

func TestResolveUnknownAnonymized(t *testing.T) {
	r := newTestResolver(t)
	_, ok := r.Resolve("99887766554433@lid")
	assert.False(t, ok)
}

func TestRegisterPair(t *testing.T) {
	r := newTestResolver(t)

	assert.True(t, r.RegisterPair("99887766554433@lid", "5219991234567@s.whatsapp.net"))
	assert.False(t, r.RegisterPair("99887766554433@lid", "5219991234567@s.whatsapp.net"),
		"re-registering the same pair is not new")

	jid, ok := r.Resolve("99887766554433@lid")
	require.True(t, ok)
	assert.Equal(t, "5219991234567@s.whatsapp.net", jid)
}

func TestRegisterPairRejectsWrongShapes(t *testing.T) {
	r := newTestResolver(t)

	assert.False(t, r.RegisterPair("", "5219991234567@s.whatsapp.net"))
	assert.False(t, r.RegisterPair("99887766554433@lid", ""))
	assert.False(t, r.RegisterPair("5219991234567@s.whatsapp.net", "5219991234567@s.whatsapp.net"))
	assert.False(t, r.RegisterPair("99887766554433@lid", "99887766554433@lid"))
	assert.Equal(t, 0, r.Size())
}

func TestHandleContactsSyncBothShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lid_map.json")
	r := NewResolver(path, zap.NewNop())

	r.HandleContactsSync([]transport.Contact{
		// Shape one: anonymized id next to a phone-style id.
		{ID: "5219991234567@s.whatsapp.net", LID: "11111111111111@lid"},
		// Shape two: bare phone to reconstruct.
		{LID: "22222222222222@lid", Phone: "+529997654321"},
		// No anonymized id: nothing to learn.
		{ID: "5215550001111@s.whatsapp.net"},
	})
	assert.Equal(t, 2, r.Size())

	jid, ok := r.Resolve("11111111111111@lid")
	require.True(t, ok)
	assert.Equal(t, "5219991234567@s.whatsapp.net", jid)

	jid, ok = r.Resolve("22222222222222@lid")
	require.True(t, ok)
	assert.Equal(t, "529997654321@s.whatsapp.net", jid)

	// The batch taught something, so the map must be on disk now and a
	// fresh resolver must pick it up.
	fresh := NewResolver(path, zap.NewNop())
	require.NoError(t, fresh.Load())
	assert.Equal(t, 2, fresh.Size())
	jid, ok = fresh.Resolve("11111111111111@lid")
	require.True(t, ok)
	assert.Equal(t, "5219991234567@s.whatsapp.net", jid)
}

func TestLoadMissingFile(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, r.Load())
	assert.Equal(t, 0, r.Size())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lid_map.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	r := NewResolver(path, zap.NewNop())
	require.NoError(t, r.Load())
	assert.Equal(t, 0, r.Size())
}
