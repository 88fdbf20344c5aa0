package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/models"
)

// getUserHandler handles GET /api/v1/users/:id.
func (s *Server) getUserHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := s.users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// listUsersHandler handles GET /api/v1/users.
func (s *Server) listUsersHandler(c *gin.Context) {
	var filters models.UserFilters
	filters.Login = c.Query("login")

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

	result, err := s.users.ListUsers(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// updateUserHandler handles PATCH /api/v1/users/:id.
func (s *Server) updateUserHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := s.users.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// anonymizeUserHandler handles POST /api/v1/users/:id/anonymize.
// Anonymization is idempotent: an already-anonymized record comes back
// unchanged with 200.
func (s *Server) anonymizeUserHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := s.users.AnonymizeUser(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
