package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine) {
	wsRoutes := r.Group("/ws")
	wsRoutes.Use(roles(anyRole))
	{
		wsRoutes.GET("/day-ends", controllers.HandleDayEndSocket)
	}
}
