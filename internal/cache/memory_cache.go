package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/utils"
)

// MemoryDraftCache is used when no Redis is configured. Entries are stored as
// JSON so callers never share slices with the cache.
type MemoryDraftCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	data      []byte
	expiresAt time.Time // zero: no expiry
}

func NewMemoryDraftCache() *MemoryDraftCache {
	return &MemoryDraftCache{entries: map[string]memEntry{}, now: time.Now}
}

func (c *MemoryDraftCache) GetDraft(_ context.Context, draftID string) (*models.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(draftID)
}

func (c *MemoryDraftCache) getLocked(draftID string) (*models.Draft, error) {
	e, ok := c.entries[draftKey(draftID)]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, draftKey(draftID))
		return nil, utils.ErrNotFound
	}

	var d models.Draft
	if err := json.Unmarshal(e.data, &d); err != nil {
		delete(c.entries, draftKey(draftID))
		return nil, utils.ErrNotFound
	}
	return &d, nil
}

func (c *MemoryDraftCache) SetDraft(_ context.Context, d *models.Draft, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(d, ttl)
}

func (c *MemoryDraftCache) setLocked(d *models.Draft, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}

	e := memEntry{data: b}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[draftKey(d.DraftID)] = e
	return nil
}

// UpdateDraft runs fn under the cache lock.
func (c *MemoryDraftCache) UpdateDraft(_ context.Context, draftID string, fn UpdateFunc) (*models.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.getLocked(draftID)
	if err != nil {
		return nil, err
	}
	ttl, err := fn(d)
	if err != nil {
		return nil, err
	}
	if err := c.setLocked(d, ttl); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *MemoryDraftCache) DelDraft(_ context.Context, draftIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range draftIDs {
		delete(c.entries, draftKey(id))
	}
	return nil
}
