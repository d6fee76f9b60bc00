package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
	"busops/internal/middleware"
)

func AuthRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", controllers.SignupUser)
		auth.POST("/login", controllers.LoginUser)
		auth.POST("/logout", middleware.RequireAuth(), controllers.LogoutUser)
		auth.GET("/me", middleware.RequireAuth(), controllers.CurrentUser)
	}
}
