package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes. authenticated is the group guarded by Middleware.
func RegisterRoutes(r *gin.RouterGroup, authenticated *gin.RouterGroup, handler *Handler, allowTokenIssue bool) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		if allowTokenIssue {
			authGroup.POST("/token", handler.IssueToken)
		}
	}
	authenticated.GET("/auth/me", handler.Me)
}
