package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicechallan/internal/cache"
	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/utils"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTranscriptService(t *testing.T) (*transcriptService, *time.Time) {
	t.Helper()
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	svc := NewTranscriptService(nil, cache.NewMemoryDraftCache(), time.Hour, quietLogger()).(*transcriptService)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestTranscriptService_Parse(t *testing.T) {
	svc, _ := newTranscriptService(t)

	res, err := svc.Parse(context.Background(), "two rods, junk, 3 pipes")
	require.NoError(t, err)
	assert.Equal(t, []models.Item{
		{Quantity: 2, Description: "rods"},
		{Quantity: 3, Description: "pipes"},
	}, res.Items)
	assert.Equal(t, 3, res.Segments)
	assert.Equal(t, 1, res.Skipped)

	res, err = svc.Parse(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestTranscriptService_ParseCancelled(t *testing.T) {
	svc, _ := newTranscriptService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Parse(ctx, "two rods")
	assert.True(t, utils.IsCode(err, utils.CodeTimeout))
}

func TestTranscriptService_DraftLifecycle(t *testing.T) {
	svc, now := newTranscriptService(t)
	ctx := context.Background()

	d, err := svc.CreateDraft(ctx, "two rods, 3 pipes")
	require.NoError(t, err)
	require.NotEmpty(t, d.DraftID)
	assert.Equal(t, []float64{0, 0}, d.Prices)
	assert.True(t, now.Add(time.Hour).Equal(d.ExpiresAt))

	d, err = svc.SetPrices(ctx, d.DraftID, map[int]float64{1: 12.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 12.5}, d.Prices)

	*now = now.Add(10 * time.Minute)
	d, added, err := svc.AppendTranscript(ctx, d.DraftID, "five valves, nothing")
	require.NoError(t, err)
	assert.Equal(t, []models.Item{{Quantity: 5, Description: "valves"}}, added)
	assert.Len(t, d.Items, 3)
	assert.Equal(t, []float64{0, 12.5, 0}, d.Prices)
	assert.Equal(t, "two rods, 3 pipes, five valves, nothing", d.Transcript)

	got, err := svc.GetDraft(ctx, d.DraftID)
	require.NoError(t, err)
	assert.Equal(t, d.Items, got.Items)
	assert.True(t, now.Equal(got.UpdatedAt))

	require.NoError(t, svc.DiscardDraft(ctx, d.DraftID))
	_, err = svc.GetDraft(ctx, d.DraftID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestTranscriptService_AppendNothingRecognised(t *testing.T) {
	svc, _ := newTranscriptService(t)
	ctx := context.Background()

	d, err := svc.CreateDraft(ctx, "two rods")
	require.NoError(t, err)

	got, added, err := svc.AppendTranscript(ctx, d.DraftID, "uh, hmm")
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, "two rods", got.Transcript)
	assert.Len(t, got.Items, 1)
}

func TestTranscriptService_SetPricesValidation(t *testing.T) {
	svc, _ := newTranscriptService(t)
	ctx := context.Background()

	d, err := svc.CreateDraft(ctx, "two rods")
	require.NoError(t, err)

	_, err = svc.SetPrices(ctx, d.DraftID, map[int]float64{1: 10})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.SetPrices(ctx, d.DraftID, map[int]float64{0: -1})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.SetPrices(ctx, "missing", map[int]float64{0: 1})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestTranscriptService_ExpiredDraft(t *testing.T) {
	svc, now := newTranscriptService(t)
	ctx := context.Background()

	d, err := svc.CreateDraft(ctx, "two rods")
	require.NoError(t, err)

	// the memory cache uses the real clock; only the service clock moves here
	*now = now.Add(2 * time.Hour)
	_, err = svc.SetPrices(ctx, d.DraftID, map[int]float64{0: 1})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestTranscriptService_EmptyIDs(t *testing.T) {
	svc, _ := newTranscriptService(t)
	ctx := context.Background()

	_, err := svc.GetDraft(ctx, "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.True(t, utils.IsCode(svc.DiscardDraft(ctx, ""), utils.CodeInvalidArgument))
}

func draftCaches(t *testing.T) map[string]cache.DraftCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]cache.DraftCache{
		"memory": cache.NewMemoryDraftCache(),
		"redis":  cache.NewRedisDraftCache(rdb),
	}
}

func TestTranscriptService_ConcurrentPricesAndAppend(t *testing.T) {
	for name, drafts := range draftCaches(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewTranscriptService(nil, drafts, time.Hour, quietLogger())
			ctx := context.Background()

			d, err := svc.CreateDraft(ctx, "two rods")
			require.NoError(t, err)

			const appends = 20
			var wg sync.WaitGroup
			wg.Add(appends + 1)
			go func() {
				defer wg.Done()
				_, err := svc.SetPrices(ctx, d.DraftID, map[int]float64{0: 99})
				assert.NoError(t, err)
			}()
			for i := 1; i <= appends; i++ {
				go func(i int) {
					defer wg.Done()
					_, _, err := svc.AppendTranscript(ctx, d.DraftID, fmt.Sprintf("%d bolts", i))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, err := svc.GetDraft(ctx, d.DraftID)
			require.NoError(t, err)
			require.Len(t, got.Items, appends+1)
			require.Len(t, got.Prices, appends+1)
			assert.Equal(t, 99.0, got.Prices[0])

			seen := map[int]bool{}
			for _, it := range got.Items[1:] {
				seen[it.Quantity] = true
			}
			assert.Len(t, seen, appends)
		})
	}
}

func TestTranscriptService_AppendKeepsCallOrder(t *testing.T) {
	for name, drafts := range draftCaches(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewTranscriptService(nil, drafts, time.Hour, quietLogger())
			ctx := context.Background()

			d, err := svc.CreateDraft(ctx, "")
			require.NoError(t, err)
			for i := 1; i <= 5; i++ {
				_, _, err := svc.AppendTranscript(ctx, d.DraftID, fmt.Sprintf("%d rods", i))
				require.NoError(t, err)
			}

			got, err := svc.GetDraft(ctx, d.DraftID)
			require.NoError(t, err)
			require.Len(t, got.Items, 5)
			for i, it := range got.Items {
				assert.Equal(t, i+1, it.Quantity)
			}
			assert.Equal(t, "1 rods, 2 rods, 3 rods, 4 rods, 5 rods", got.Transcript)
		})
	}
}

func newChallanService(ts TranscriptService) *challanService {
	svc := NewChallanService("Shakti Trading Co.", ts, quietLogger()).(*challanService)
	svc.now = func() time.Time { return time.Date(2026, 2, 7, 15, 4, 5, 0, time.UTC) }
	return svc
}

func TestChallanService_Prepare(t *testing.T) {
	svc := newChallanService(nil)

	sum, err := svc.Prepare(context.Background(), models.ChallanRequest{
		CustomerName: " R.K. Builders & Sons ",
		ChallanNo:    "C-17",
		Items: []models.PricedItem{
			{Quantity: 2, Description: "steel rods", Price: 150},
			{Quantity: 3, Description: "mm pipe"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Shakti Trading Co.", sum.Company)
	assert.Equal(t, "R.K. Builders & Sons", sum.CustomerName)
	assert.Equal(t, "07-02-2026", sum.Date)
	assert.Equal(t, "RK Builders  Sons_20260207_challan_C-17.pdf", sum.FileName)
	assert.Equal(t, 5, sum.TotalItems)
	assert.InDelta(t, 300.0, sum.TotalPrice, 1e-9)
	assert.Equal(t, []models.ChallanLine{
		{Quantity: 2, Description: "steel rods", Price: 150, Total: 300},
		{Quantity: 3, Description: "mm pipe", Price: 0, Total: 0},
	}, sum.Lines)
}

func TestChallanService_FileNameStripsPathCharacters(t *testing.T) {
	svc := newChallanService(nil)
	item := []models.PricedItem{{Quantity: 1, Description: "bolt"}}

	tests := []struct {
		challanNo string
		fileName  string
	}{
		{"../x", "Gupta_20260207_challan_x.pdf"},
		{"..\\..\\etc/passwd", "Gupta_20260207_challan_etcpasswd.pdf"},
		{"INV_2026-07", "Gupta_20260207_challan_INV_2026-07.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.challanNo, func(t *testing.T) {
			sum, err := svc.Prepare(context.Background(), models.ChallanRequest{
				CustomerName: "Gupta", ChallanNo: tt.challanNo, Items: item,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.fileName, sum.FileName)
			// the summary still shows the number as entered
			assert.Equal(t, tt.challanNo, sum.ChallanNo)
		})
	}
}

func TestChallanSummary_JSONKeys(t *testing.T) {
	svc := newChallanService(nil)
	sum, err := svc.Prepare(context.Background(), models.ChallanRequest{
		CustomerName: "Gupta", ChallanNo: "9",
		Items: []models.PricedItem{{Quantity: 1, Description: "bolt", Price: 2}},
	})
	require.NoError(t, err)

	b, err := json.Marshal(sum)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	for _, k := range []string{"company", "customerName", "challanNo", "date", "fileName", "lines", "totalItems", "totalPrice"} {
		assert.Contains(t, got, k)
	}
	assert.NotContains(t, got, "customer_name")
}

func TestChallanService_PrepareValidation(t *testing.T) {
	svc := newChallanService(nil)
	item := []models.PricedItem{{Quantity: 1, Description: "bolt"}}

	tests := []struct {
		name string
		req  models.ChallanRequest
		msg  string
	}{
		{"all missing", models.ChallanRequest{}, "Missing required fields: items, customerName, challanNo"},
		{"blank customer", models.ChallanRequest{CustomerName: "  ", ChallanNo: "1", Items: item}, "Missing required fields: customerName"},
		{"empty items", models.ChallanRequest{CustomerName: "A", ChallanNo: "1", Items: []models.PricedItem{}}, "Items must be a non-empty array"},
		{"bad item", models.ChallanRequest{CustomerName: "A", ChallanNo: "1", Items: []models.PricedItem{
			{Quantity: 1, Description: "bolt"}, {Quantity: 2},
		}}, "Invalid item at index 1. Each item must have quantity and description"},
		{"negative price", models.ChallanRequest{CustomerName: "A", ChallanNo: "1", Items: []models.PricedItem{
			{Quantity: 1, Description: "bolt", Price: -2},
		}}, "Invalid price at index 0"},
		{"unusable challan number", models.ChallanRequest{CustomerName: "A", ChallanNo: "../", Items: item}, "challanNo must contain letters or digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Prepare(context.Background(), tt.req)
			require.Error(t, err)
			var ae *utils.AppError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, utils.CodeInvalidArgument, ae.Code)
			assert.Equal(t, tt.msg, ae.Message)
		})
	}
}

func TestChallanService_PrepareDraft(t *testing.T) {
	ts, _ := newTranscriptService(t)
	svc := newChallanService(ts)
	ctx := context.Background()

	d, err := ts.CreateDraft(ctx, "two rods, four Intu bolts")
	require.NoError(t, err)
	_, err = ts.SetPrices(ctx, d.DraftID, map[int]float64{0: 10, 1: 2.5})
	require.NoError(t, err)

	sum, err := svc.PrepareDraft(ctx, d.DraftID, "Mehta", "42")
	require.NoError(t, err)
	assert.Equal(t, 6, sum.TotalItems)
	assert.InDelta(t, 30.0, sum.TotalPrice, 1e-9)
	assert.Equal(t, "inch bolts", sum.Lines[1].Description)

	_, err = svc.PrepareDraft(ctx, "missing", "Mehta", "42")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	empty, err := ts.CreateDraft(ctx, "nothing useful")
	require.NoError(t, err)
	_, err = svc.PrepareDraft(ctx, empty.DraftID, "Mehta", "43")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
