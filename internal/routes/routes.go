package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
	"busops/internal/middleware"
	"busops/internal/models"
)

var (
	anyRole   = []string{models.RoleSuperAdmin, models.RoleBusOwner, models.RoleManager}
	ownerRole = []string{models.RoleSuperAdmin, models.RoleBusOwner}
	adminRole = []string{models.RoleSuperAdmin}
)

// SetupRouter registers every API route on r and returns it.
func SetupRouter(r *gin.Engine) *gin.Engine {
	api := r.Group("/api")
	api.GET("/health", controllers.Health)

	AuthRoutes(api)
	AdminRoutes(api)
	BusRoutes(api)
	RouteRoutes(api)
	ExpenseRoutes(api)
	DayEndRoutes(api)
	FeeRoutes(api)
	WebSocketRoutes(r)

	return r
}

func roles(allowed []string) gin.HandlerFunc {
	return middleware.RequireRoles(allowed...)
}
