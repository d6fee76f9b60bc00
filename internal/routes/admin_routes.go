package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

// AdminRoutes is user management, super-admin only.
func AdminRoutes(r *gin.RouterGroup) {
	admin := r.Group("/users")
	admin.Use(roles(adminRole))
	{
		admin.GET("", controllers.ListUsers)
		admin.POST("", controllers.CreateUser)
		admin.GET("/:id", controllers.GetUser)
		admin.PUT("/:id", controllers.UpdateUser)
		admin.PATCH("/:id/active", controllers.SetUserActive)
		admin.DELETE("/:id", controllers.DeleteUser)
	}
}
