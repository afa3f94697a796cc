package handler

import (
	"batchchat/backend/internal/roster"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateBatch(c *gin.Context) {
	var in roster.CreateBatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	batch, res, err := h.Batches.CreateBatch(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"batch": batch, "chat_sync": res})
}

func (h *Handler) UpdateBatch(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	var in roster.UpdateBatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	batch, res, err := h.Batches.UpdateBatch(c.Request.Context(), currentUser(c), batchID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch, "chat_sync": res})
}

// DeleteBatch is a soft delete: the batch turns inactive.
func (h *Handler) DeleteBatch(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	if err := h.Batches.DeleteBatch(c.Request.Context(), batchID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddBatchMember(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	var in roster.MemberInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	member, res, err := h.Batches.AddMember(c.Request.Context(), currentUser(c), batchID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member, "chat_sync": res})
}

func (h *Handler) RemoveBatchMember(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	if err := h.Batches.RemoveMember(c.Request.Context(), batchID, c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListBatchMembers(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	members, err := h.Batches.ListMembers(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}
