package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

// RouteRoutes covers routes, their stops and the fare sections on each stop.
func RouteRoutes(r *gin.RouterGroup) {
	rt := r.Group("/routes")
	rt.Use(roles(anyRole))
	{
		rt.GET("", controllers.ListRoutes)
		rt.GET("/:id", controllers.GetRoute)
		rt.POST("", roles(ownerRole), controllers.CreateRoute)
		rt.PUT("/:id", roles(ownerRole), controllers.UpdateRoute)
		rt.PATCH("/:id/active", roles(ownerRole), controllers.SetRouteActive)
		rt.DELETE("/:id", roles(ownerRole), controllers.DeleteRoute)
		rt.POST("/:id/stops", roles(ownerRole), controllers.AddStop)
		rt.PUT("/:id/stops", roles(ownerRole), controllers.ReplaceStops)
	}

	stops := r.Group("/stops")
	stops.Use(roles(anyRole))
	{
		stops.GET("", controllers.ListStops)
		stops.GET("/:stopId", controllers.GetStop)
		stops.PUT("/:stopId", roles(ownerRole), controllers.UpdateStop)
		stops.PATCH("/:stopId/active", roles(ownerRole), controllers.SetStopActive)
		stops.DELETE("/:stopId", roles(ownerRole), controllers.DeleteStop)
		stops.POST("/:stopId/sections", roles(ownerRole), controllers.AddSection)
	}

	sections := r.Group("/sections")
	sections.Use(roles(anyRole))
	{
		sections.GET("", controllers.ListSections)
		sections.GET("/:sectionId", controllers.GetSection)
		sections.PUT("/:sectionId", roles(ownerRole), controllers.UpdateSection)
		sections.PATCH("/:sectionId/active", roles(ownerRole), controllers.SetSectionActive)
		sections.DELETE("/:sectionId", roles(ownerRole), controllers.DeleteSection)
	}
}
