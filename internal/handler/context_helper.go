package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/middleware"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns nil for anonymous requests.
func actorFromContext(c *gin.Context) *authz.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil
	}
	return &authz.Actor{ID: id, Role: claims.Role}
}

// requireActor returns the actor or an unauthorized error for routes
// behind the JWT middleware.
func requireActor(c *gin.Context) (authz.Actor, error) {
	actor := actorFromContext(c)
	if actor == nil {
		return authz.Actor{}, appErrors.ErrUnauthorized
	}
	return *actor, nil
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	return id, nil
}

// queryValue returns the raw query string value or nil when absent, so
// validation can treat missing and present-but-invalid differently.
func queryValue(c *gin.Context, name string) interface{} {
	if value, ok := c.GetQuery(name); ok {
		return value
	}
	return nil
}
