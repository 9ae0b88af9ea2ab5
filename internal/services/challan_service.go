package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/utils"
)

// ChallanService validates a priced item list and computes what the document
// renderer needs. It does not render or store anything.
type ChallanService interface {
	Prepare(ctx context.Context, req models.ChallanRequest) (*models.ChallanSummary, error)
	PrepareDraft(ctx context.Context, draftID, customerName, challanNo string) (*models.ChallanSummary, error)
}

type challanService struct {
	company     string
	transcripts TranscriptService
	log         *logrus.Logger
	now         func() time.Time
}

func NewChallanService(company string, transcripts TranscriptService, log *logrus.Logger) ChallanService {
	if log == nil {
		log = logrus.New()
	}
	return &challanService{company: company, transcripts: transcripts, log: log, now: time.Now}
}

func (s *challanService) Prepare(ctx context.Context, req models.ChallanRequest) (*models.ChallanSummary, error) {
	const op = "ChallanService.Prepare"

	customer := strings.TrimSpace(req.CustomerName)
	challanNo := strings.TrimSpace(req.ChallanNo)

	var missing []string
	if req.Items == nil {
		missing = append(missing, "items")
	}
	if customer == "" {
		missing = append(missing, "customerName")
	}
	if challanNo == "" {
		missing = append(missing, "challanNo")
	}
	if len(missing) > 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if len(req.Items) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Items must be a non-empty array", nil)
	}
	fileNo := safeChallanNo(challanNo)
	if fileNo == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "challanNo must contain letters or digits", nil)
	}

	now := s.now()
	sum := &models.ChallanSummary{
		Company:      s.company,
		CustomerName: customer,
		ChallanNo:    challanNo,
		Date:         now.Format("02-01-2006"),
		FileName:     fmt.Sprintf("%s_%s_challan_%s.pdf", safeFileComponent(customer), now.Format("20060102"), fileNo),
		Lines:        make([]models.ChallanLine, 0, len(req.Items)),
	}

	for i, it := range req.Items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op,
				fmt.Sprintf("Invalid item at index %d. Each item must have quantity and description", i), nil)
		}
		if it.Price < 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("Invalid price at index %d", i), nil)
		}

		total := float64(it.Quantity) * it.Price
		sum.Lines = append(sum.Lines, models.ChallanLine{
			Quantity:    it.Quantity,
			Description: desc,
			Price:       it.Price,
			Total:       total,
		})
		sum.TotalItems += it.Quantity
		sum.TotalPrice += total
	}

	s.log.WithFields(logrus.Fields{
		"challan_no":  sum.ChallanNo,
		"lines":       len(sum.Lines),
		"total_items": sum.TotalItems,
	}).Info("challan prepared")
	return sum, nil
}

func (s *challanService) PrepareDraft(ctx context.Context, draftID, customerName, challanNo string) (*models.ChallanSummary, error) {
	const op = "ChallanService.PrepareDraft"

	if s.transcripts == nil {
		return nil, utils.E(utils.CodeInternal, op, "drafts are not available", nil)
	}
	d, err := s.transcripts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	return s.Prepare(ctx, models.ChallanRequest{
		CustomerName: customerName,
		ChallanNo:    challanNo,
		Items:        d.PricedItems(),
	})
}

// safeFileComponent keeps letters, digits, spaces and underscores.
func safeFileComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// safeChallanNo keeps letters, digits, hyphens and underscores, so the number
// can never add a path separator or a dot segment to the file name.
func safeChallanNo(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
