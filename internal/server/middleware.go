package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	contextEmailKey  = "user_email"
)

// AuthRequired verifies the bearer token and resolves the subject into
// the request context. Users are recorded on first sight.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			s.metrics.RecordTokenVerification("rejected")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			s.metrics.RecordTokenVerification("rejected")
			AbortWithError(c, err)
			return
		}
		s.metrics.RecordTokenVerification("ok")

		if _, err := s.userSvc.EnsureUser(c.Request.Context(), claims.Subject, claims.Email); err != nil {
			s.log.Error("failed to record authenticated user",
				zap.String("subject", claims.Subject),
				zap.Error(err),
			)
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, claims.Subject)
		c.Set(contextEmailKey, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentUserID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
