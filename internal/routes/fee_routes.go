package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

// FeeRoutes: owners read and pay their own fees, billing itself is super-admin work.
func FeeRoutes(r *gin.RouterGroup) {
	fees := r.Group("/monthly-fees")
	fees.Use(roles(ownerRole))
	{
		fees.GET("", controllers.ListMonthlyFees)
		fees.GET("/summary", controllers.MonthlyFeeSummary)
		fees.GET("/:id", controllers.GetMonthlyFee)
		fees.GET("/:id/invoice", controllers.FeeInvoice)
		fees.PATCH("/:id/pay", controllers.RecordFeePayment)
		fees.POST("", roles(adminRole), controllers.CreateMonthlyFee)
		fees.POST("/generate", roles(adminRole), controllers.GenerateMonthlyFees)
		fees.PUT("/:id", roles(adminRole), controllers.UpdateMonthlyFee)
		fees.DELETE("/:id", roles(adminRole), controllers.DeleteMonthlyFee)
	}
}
