package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parseIDParam parses the :id path parameter as a UUID. On failure it
// writes the 400 response and returns ok=false.
func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePageParams parses the limit and offset query parameters. Zero
// values let the service apply its defaults. On failure it writes the
// 400 response and returns ok=false.
func parsePageParams(c *gin.Context) (limit, offset int, ok bool) {
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondBadRequest(c, "invalid limit: must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondBadRequest(c, "invalid offset: must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
