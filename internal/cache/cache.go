package cache

import (
	"context"
	"time"

	"github.com/yoockh/voicechallan/internal/models"
)

// DraftCache holds challan drafts between dictation and pricing. Get returns
// utils.ErrNotFound for missing or expired drafts.
type DraftCache interface {
	GetDraft(ctx context.Context, draftID string) (*models.Draft, error)
	SetDraft(ctx context.Context, d *models.Draft, ttl time.Duration) error
	DelDraft(ctx context.Context, draftIDs ...string) error

	// UpdateDraft applies fn to the stored draft and writes the result back
	// atomically; concurrent updates to the same draft never overwrite each
	// other. fn returns the ttl to store with. An error from fn aborts the write
	// and is returned unchanged.
	UpdateDraft(ctx context.Context, draftID string, fn UpdateFunc) (*models.Draft, error)
}

type UpdateFunc func(d *models.Draft) (ttl time.Duration, err error)

func draftKey(id string) string { return "draft:" + id }
