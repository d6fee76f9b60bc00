package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

func BusRoutes(r *gin.RouterGroup) {
	buses := r.Group("/buses")
	buses.Use(roles(anyRole))
	{
		buses.GET("", controllers.ListBuses)
		buses.GET("/:id", controllers.GetBus)
		buses.POST("", roles(ownerRole), controllers.CreateBus)
		buses.PUT("/:id", roles(ownerRole), controllers.UpdateBus)
		buses.PATCH("/:id/status", roles(ownerRole), controllers.SetBusStatus)
		buses.DELETE("/:id", roles(ownerRole), controllers.DeleteBus)
	}
}
