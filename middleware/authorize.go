package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

// RequireRoles admits callers whose role is listed. Administrators are always admitted.
// A caller without a recognised role is treated as unauthenticated.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return gate(func(r models.Role) bool {
		return r == models.RoleAdmin || allowed[r]
	})
}

// RequireCapability admits callers whose role holds c.
func RequireCapability(c models.Capability) gin.HandlerFunc {
	return gate(func(r models.Role) bool {
		return r.Can(c)
	})
}

func gate(permit func(models.Role) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ident, ok := CurrentIdentity(ctx)
		if !ok || !ident.Role.Valid() {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "unauthorized")
			ctx.Abort()
			return
		}
		if !permit(ident.Role) {
			utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
