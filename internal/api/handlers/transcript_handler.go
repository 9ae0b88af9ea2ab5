package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/voicechallan/internal/services"
	"github.com/yoockh/voicechallan/internal/utils"
)

type TranscriptHandler struct {
	svc services.TranscriptService
}

func NewTranscriptHandler(svc services.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{svc: svc}
}

type TranscriptRequest struct {
	Transcript string `json:"transcript"`
}

// Prices are keyed by item index; JSON object keys are strings.
type SetPricesRequest struct {
	Prices map[string]float64 `json:"prices" binding:"required"`
}

func (h *TranscriptHandler) Parse(c *gin.Context) {
	var req TranscriptRequest
	if !bindJSON(c, "TranscriptHandler.Parse", &req) {
		return
	}

	res, err := h.svc.Parse(c.Request.Context(), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TranscriptHandler) CreateDraft(c *gin.Context) {
	var req TranscriptRequest
	if !bindJSON(c, "TranscriptHandler.CreateDraft", &req) {
		return
	}

	d, err := h.svc.CreateDraft(c.Request.Context(), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *TranscriptHandler) GetDraft(c *gin.Context) {
	d, err := h.svc.GetDraft(c.Request.Context(), c.Param("draft_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *TranscriptHandler) SetPrices(c *gin.Context) {
	const op = "TranscriptHandler.SetPrices"

	var req SetPricesRequest
	if !bindJSON(c, op, &req) {
		return
	}

	prices := make(map[int]float64, len(req.Prices))
	for k, v := range req.Prices {
		idx, err := strconv.Atoi(k)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "price keys must be item indexes", err))
			return
		}
		prices[idx] = v
	}

	d, err := h.svc.SetPrices(c.Request.Context(), c.Param("draft_id"), prices)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *TranscriptHandler) DiscardDraft(c *gin.Context) {
	if err := h.svc.DiscardDraft(c.Request.Context(), c.Param("draft_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
