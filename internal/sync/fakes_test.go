package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/awnumar/memguard"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/store"
)

// fakeVault is a scriptable op.Client.
type fakeVault struct {
	items      []op.Item
	details    map[string]op.Item
	references map[string]string

	listErr    error
	detailErr  error
	resolveErr error

	mu           sync.Mutex
	resolvedRefs []string
}

func (f *fakeVault) ListItems(context.Context) ([]op.Item, error) {
	return f.items, f.listErr
}

func (f *fakeVault) GetItem(_ context.Context, id, _ string) (*op.Item, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if item, ok := f.details[id]; ok {
		return &item, nil
	}
	return nil, nil
}

func (f *fakeVault) ResolveReference(_ context.Context, ref string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	f.mu.Lock()
	f.resolvedRefs = append(f.resolvedRefs, ref)
	f.mu.Unlock()

	value, ok := f.references[ref]
	if !ok {
		return "", errors.New("reference not found")
	}
	return value, nil
}

func (f *fakeVault) GetUsage(context.Context) ([]op.UsageRow, error) {
	return nil, nil
}

// firedEvent is one recorded sink delivery.
type firedEvent struct {
	Type string
	Data map[string]interface{}
}

// fakeSink records events and notifications.
type fakeSink struct {
	mu            sync.Mutex
	events        []firedEvent
	notifications []string
	unavailable   bool
}

func (f *fakeSink) Available() bool { return !f.unavailable }

func (f *fakeSink) FireEvent(_ context.Context, eventType string, data map[string]interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, firedEvent{Type: eventType, Data: data})
	return true
}

func (f *fakeSink) SendNotification(_ context.Context, title, message, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, title+": "+message)
	return true
}

func (f *fakeSink) DismissNotification(context.Context, string) bool { return true }

func (f *fakeSink) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

func (f *fakeSink) eventsOfType(eventType string) []firedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []firedEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeFiles is an in-memory secrets.Store.
type fakeFiles struct {
	referenced []string
	existing   []string
	values     map[string]string

	scanErr  error
	applyErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{values: map[string]string{}}
}

func (f *fakeFiles) ScanReferencedKeys() ([]string, error) {
	return f.referenced, f.scanErr
}

func (f *fakeFiles) ExistingKeys() ([]string, error) {
	return f.existing, nil
}

func (f *fakeFiles) ReadRaw() (string, error) { return "", nil }

func (f *fakeFiles) WriteRaw(string) error { return nil }

func (f *fakeFiles) Apply(values map[string]*memguard.Enclave) ([]string, []string, error) {
	if f.applyErr != nil {
		return nil, nil, f.applyErr
	}

	existingSet := make(map[string]struct{}, len(f.existing))
	for _, key := range f.existing {
		existingSet[key] = struct{}{}
	}

	var written, added []string
	for key, enclave := range values {
		locked, err := enclave.Open()
		if err != nil {
			return nil, nil, err
		}
		f.values[key] = locked.String()
		locked.Destroy()

		written = append(written, key)
		if _, ok := existingSet[key]; !ok {
			added = append(added, key)
		}
	}
	return written, added, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "opsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
