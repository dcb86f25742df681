package http

import "github.com/gin-gonic/gin"

// Module is a feature area that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to every module. All case and inbox routes need an
// authenticated caller, so modules only get the protected /api/v1 group.
type RouterContext struct {
	Protected *gin.RouterGroup
}
