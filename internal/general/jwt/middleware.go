package jwt

import (
	"net/http"
	"time"

	"pickup-market/internal/domain/user"

	"github.com/gin-gonic/gin"
)

// Identity attaches the agent's own claims to every local API request and refuses
// the route group when the agent runs under the wrong role.
func Identity(claims *Claims, allowedRoles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		// enforce role-based access control (RBAC)
		if err := RoleAllowed(claims, allowedRoles...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		// inject claims into context and proceed to next handler
		c.Request = c.Request.WithContext(InjectClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(c *gin.Context) *Claims {
	cl, _ := FromContext(c.Request.Context())
	return cl
}

// IdentityView is the GET /v1/me body.
type IdentityView struct {
	UserID    string     `json:"user_id"`
	Role      user.Role  `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WhoAmI reports the identity the agent acts as, so the UI can label the session.
func WhoAmI(c *gin.Context) {
	cl := RequireClaims(c)
	if cl == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrEmptyToken.Error()})
		return
	}

	view := IdentityView{UserID: cl.UserID(), Role: cl.Role}
	if cl.ExpiresAt != nil {
		exp := cl.ExpiresAt.UTC()
		view.ExpiresAt = &exp
	}
	c.JSON(http.StatusOK, view)
}
