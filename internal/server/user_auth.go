package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/observability/logger"
)

const (
	// HeaderUserID is set by the upstream auth gateway after it has
	// authenticated the caller.
	HeaderUserID = "X-User-Id"

	contextUserIDKey = "user_id"
)

// UserRequired rejects requests without a valid user id header.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID.String()))
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional id; empty yields uuid.Nil.
func optionalUUID(c *gin.Context, field, raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_id", field+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
