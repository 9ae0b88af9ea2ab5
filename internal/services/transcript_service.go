package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechallan/internal/cache"
	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/parser"
	"github.com/yoockh/voicechallan/internal/utils"
)

type TranscriptService interface {
	Parse(ctx context.Context, transcript string) (*models.ParseResult, error)
	CreateDraft(ctx context.Context, transcript string) (*models.Draft, error)
	GetDraft(ctx context.Context, draftID string) (*models.Draft, error)
	AppendTranscript(ctx context.Context, draftID, text string) (*models.Draft, []models.Item, error)
	SetPrices(ctx context.Context, draftID string, prices map[int]float64) (*models.Draft, error)
	DiscardDraft(ctx context.Context, draftID string) error
}

type transcriptService struct {
	parser *parser.Parser
	drafts cache.DraftCache
	ttl    time.Duration
	log    *logrus.Logger
	now    func() time.Time
}

func NewTranscriptService(p *parser.Parser, drafts cache.DraftCache, ttl time.Duration, log *logrus.Logger) TranscriptService {
	if p == nil {
		p = parser.New()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &transcriptService{parser: p, drafts: drafts, ttl: ttl, log: log, now: time.Now}
}

func (s *transcriptService) Parse(ctx context.Context, transcript string) (*models.ParseResult, error) {
	const op = "TranscriptService.Parse"

	if err := ctx.Err(); err != nil {
		return nil, utils.E(utils.CodeTimeout, op, "request cancelled", err)
	}

	items, segments := s.parser.ParseCount(transcript)
	res := &models.ParseResult{Items: items, Segments: segments, Skipped: segments - len(items)}

	s.log.WithFields(logrus.Fields{
		"segments": res.Segments,
		"items":    len(res.Items),
		"skipped":  res.Skipped,
	}).Debug("transcript parsed")
	return res, nil
}

func (s *transcriptService) CreateDraft(ctx context.Context, transcript string) (*models.Draft, error) {
	const op = "TranscriptService.CreateDraft"

	res, err := s.Parse(ctx, transcript)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	d := &models.Draft{
		DraftID:    uuid.NewString(),
		Transcript: transcript,
		Items:      res.Items,
		Prices:     make([]float64, len(res.Items)),
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.drafts.SetDraft(ctx, d, s.ttl); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store draft", err)
	}

	s.log.WithFields(logrus.Fields{"draft_id": d.DraftID, "items": len(d.Items)}).Info("draft created")
	return d, nil
}

func (s *transcriptService) GetDraft(ctx context.Context, draftID string) (*models.Draft, error) {
	const op = "TranscriptService.GetDraft"

	if draftID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "draft_id is required", nil)
	}
	d, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "draft not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load draft", err)
	}
	return d, nil
}

// AppendTranscript parses text and adds its items after the draft's existing
// ones. Prices already attached stay with their items. The added items are
// returned alongside the updated draft.
func (s *transcriptService) AppendTranscript(ctx context.Context, draftID, text string) (*models.Draft, []models.Item, error) {
	const op = "TranscriptService.AppendTranscript"

	added := s.parser.Parse(text)
	if len(added) == 0 {
		d, err := s.GetDraft(ctx, draftID)
		if err != nil {
			return nil, nil, err
		}
		return d, added, nil
	}

	d, err := s.update(ctx, op, draftID, func(d *models.Draft) error {
		if d.Transcript == "" {
			d.Transcript = text
		} else {
			d.Transcript += ", " + text
		}
		d.Prices = append(normalizePrices(d.Prices, len(d.Items)), make([]float64, len(added))...)
		d.Items = append(d.Items, added...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return d, added, nil
}

func (s *transcriptService) SetPrices(ctx context.Context, draftID string, prices map[int]float64) (*models.Draft, error) {
	const op = "TranscriptService.SetPrices"

	for _, price := range prices {
		if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "price must be a non-negative number", nil)
		}
	}

	return s.update(ctx, op, draftID, func(d *models.Draft) error {
		for idx := range prices {
			if idx < 0 || idx >= len(d.Items) {
				return utils.E(utils.CodeInvalidArgument, op, "item index out of range", nil)
			}
		}
		d.Prices = normalizePrices(d.Prices, len(d.Items))
		for idx, price := range prices {
			d.Prices[idx] = price
		}
		return nil
	})
}

func (s *transcriptService) DiscardDraft(ctx context.Context, draftID string) error {
	const op = "TranscriptService.DiscardDraft"

	if draftID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "draft_id is required", nil)
	}
	if err := s.drafts.DelDraft(ctx, draftID); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to delete draft", err)
	}
	return nil
}

// update applies fn to the stored draft atomically and keeps the draft's
// original expiry.
func (s *transcriptService) update(ctx context.Context, op, draftID string, fn func(d *models.Draft) error) (*models.Draft, error) {
	if draftID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "draft_id is required", nil)
	}

	d, err := s.drafts.UpdateDraft(ctx, draftID, func(d *models.Draft) (time.Duration, error) {
		now := s.now().UTC()
		ttl := d.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return 0, errDraftExpired
		}
		if err := fn(d); err != nil {
			return 0, err
		}
		d.UpdatedAt = now
		return ttl, nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return d, nil
}

var errDraftExpired = errors.New("draft expired")

func storeErr(op string, err error) error {
	var ae *utils.AppError
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, errDraftExpired):
		return utils.E(utils.CodeNotFound, op, "draft expired", err)
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "draft not found", err)
	}
	return utils.E(utils.CodeUnavailable, op, "failed to store draft", err)
}

func normalizePrices(prices []float64, n int) []float64 {
	if len(prices) == n {
		return prices
	}
	out := make([]float64, n)
	copy(out, prices)
	return out
}
