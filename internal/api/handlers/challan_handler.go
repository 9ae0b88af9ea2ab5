package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/services"
)

type ChallanHandler struct {
	svc services.ChallanService
}

func NewChallanHandler(svc services.ChallanService) *ChallanHandler {
	return &ChallanHandler{svc: svc}
}

type DraftChallanRequest struct {
	CustomerName string `json:"customerName"`
	ChallanNo    string `json:"challanNo"`
}

func (h *ChallanHandler) Preview(c *gin.Context) {
	var req models.ChallanRequest
	if !bindJSON(c, "ChallanHandler.Preview", &req) {
		return
	}

	sum, err := h.svc.Prepare(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *ChallanHandler) FromDraft(c *gin.Context) {
	var req DraftChallanRequest
	if !bindJSON(c, "ChallanHandler.FromDraft", &req) {
		return
	}

	sum, err := h.svc.PrepareDraft(c.Request.Context(), c.Param("draft_id"), req.CustomerName, req.ChallanNo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
