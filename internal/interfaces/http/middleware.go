package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// Caller identity is set by the authenticating proxy in front of this service.
const (
	HeaderMemberID = "X-Member-ID"
	HeaderRole     = "X-Role"
)

// actorMiddleware turns the identity headers into a workflow actor on the
// request context. A missing role defaults to member; the system role is
// reserved for background processing.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderMemberID)
		role := domainwf.Role(c.GetHeader(HeaderRole))

		switch role {
		case "":
			if id == "" {
				c.Next()
				return
			}
			role = domainwf.RoleMember
		case domainwf.RoleLeader, domainwf.RoleMember, domainwf.RoleAdmin:
		case domainwf.RoleSystem:
			abort(c, http.StatusForbidden, "system role cannot be asserted over HTTP")
			return
		default:
			abort(c, http.StatusBadRequest, "unknown role "+string(role))
			return
		}

		ctx := domainwf.WithActor(c.Request.Context(), domainwf.Actor{ID: id, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrTariffNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrConflict), errors.Is(err, domainwf.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, entity.ErrForbidden),
		errors.Is(err, entity.ErrNotEditable),
		errors.Is(err, domainwf.ErrGuardFailed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}
