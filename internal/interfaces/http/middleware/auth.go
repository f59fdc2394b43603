package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/auth"
	"github.com/erp/poscore/internal/infrastructure/logger"
	"github.com/erp/poscore/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ActorKey is the gin context key holding the authenticated shared.Actor
	ActorKey = "actor"

	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// Authenticator turns a bearer token into an actor
type Authenticator interface {
	Authenticate(token string) (shared.Actor, error)
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	Authenticator Authenticator
	// SkipPaths are exact paths that don't require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultAuthConfig returns the auth configuration used by the router
func DefaultAuthConfig(a Authenticator, l *zap.Logger) AuthConfig {
	return AuthConfig{
		Authenticator: a,
		SkipPaths:     []string{"/health", "/api/v1/health"},
		Logger:        l,
	}
}

// Auth verifies the bearer token and stores the actor it names. The role
// claim is trusted as issued; authorization happens in the services.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(authHeaderKey)
		if header == "" {
			unauthorized(c, log, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			unauthorized(c, log, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			unauthorized(c, log, auth.ErrInvalidToken, "Missing token")
			return
		}

		actor, err := cfg.Authenticator.Authenticate(token)
		if err != nil {
			unauthorized(c, log, err, "Token validation failed")
			return
		}

		c.Set(ActorKey, actor)
		ctx, _ := logger.WithUserID(c.Request.Context(), logger.FromContext(c.Request.Context()), actor.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetActor returns the authenticated actor, or false when the request was
// not authenticated
func GetActor(c *gin.Context) (shared.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return shared.Actor{}, false
	}
	actor, ok := v.(shared.Actor)
	return actor, ok
}

func unauthorized(c *gin.Context, log *zap.Logger, err error, reason string) {
	log.Warn("Authentication failed",
		zap.Error(err),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)

	message := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		message = "Token has expired"
	case errors.Is(err, auth.ErrInvalidTokenType):
		message = "Access token required"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(shared.CodeUnauthorized, message, GetRequestID(c)))
}
