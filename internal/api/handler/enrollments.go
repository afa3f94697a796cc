package handler

import (
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/roster"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Enroll enrolls the caller. A repeated enrollment answers 200 with status
// "already_enrolled" instead of 201.
func (h *Handler) Enroll(c *gin.Context) {
	var in roster.EnrollInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Enrollments.Enroll(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Status == models.OutcomeAlreadyEnrolled {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

func (h *Handler) ListEnrollments(c *gin.Context) {
	list, err := h.Enrollments.ListEnrollments(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
