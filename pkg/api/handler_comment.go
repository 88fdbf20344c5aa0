package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/privacyops/maskd/pkg/models"
)

// getCommentHandler handles GET /api/v1/comments/:id.
func (s *Server) getCommentHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	comment, err := s.comments.GetComment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// listCommentsHandler handles GET /api/v1/comments.
func (s *Server) listCommentsHandler(c *gin.Context) {
	var filters models.CommentFilters

	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondBadRequest(c, "invalid user_id: must be a valid UUID")
			return
		}
		filters.UserID = &id
	}
	if v := c.Query("anonymized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondBadRequest(c, "invalid anonymized: must be true or false")
			return
		}
		filters.Anonymized = &b
	}
	if v := c.Query("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondBadRequest(c, "invalid created_before: must be RFC3339")
			return
		}
		filters.CreatedBefore = &t
	}

	var ok bool
	if filters.Limit, filters.Offset, ok = parsePageParams(c); !ok {
		return
	}

	result, err := s.comments.ListComments(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// anonymizeCommentHandler handles POST /api/v1/comments/:id/anonymize.
func (s *Server) anonymizeCommentHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	comment, err := s.comments.AnonymizeComment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
