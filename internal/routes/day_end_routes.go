package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

func DayEndRoutes(r *gin.RouterGroup) {
	de := r.Group("/day-ends")
	de.Use(roles(anyRole))
	{
		de.GET("", controllers.ListDayEnds)
		de.GET("/summary", controllers.DayEndSummary)
		de.GET("/export", controllers.ExportDayEnds)
		de.GET("/:id", controllers.GetDayEnd)
		de.POST("", controllers.CreateDayEnd)
		de.PUT("/:id", controllers.UpdateDayEnd)
		de.PATCH("/:id/status", controllers.UpdateDayEndStatus)
		de.DELETE("/:id", roles(ownerRole), controllers.DeleteDayEnd)
	}
}
