package portal

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendclient/internal/backend"
	"attendclient/internal/fault"
)

// requireSession rejects requests while no usable session is held. The
// profile is exposed to handlers under "profile".
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.sessions.Credential(); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in", "kind": fault.Unauthenticated.String()})
			return
		}
		if p, ok := s.sessions.Profile(); ok {
			c.Set("profile", p)
		}
		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func statusOf(kind fault.Kind) int {
	switch kind {
	case fault.Unauthenticated:
		return http.StatusUnauthorized
	case fault.InvalidInput:
		return http.StatusBadRequest
	case fault.MissingArtifact, fault.Rejected:
		return http.StatusUnprocessableEntity
	case fault.InvalidState, fault.NoActiveStream, fault.Busy:
		return http.StatusConflict
	case fault.LocationUnavailable, fault.CameraUnavailable:
		return http.StatusServiceUnavailable
	case fault.TransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "kind"} with the status its kind maps
// to. Client errors answered by the backend keep their status code.
func respondError(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	status := statusOf(kind)
	var se *backend.StatusError
	if kind == fault.TransportError && errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		status = se.Code
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": fault.Message(err), "kind": kind.String()})
}
