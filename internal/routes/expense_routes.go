package routes

import (
	"github.com/gin-gonic/gin"

	"busops/internal/controllers"
)

func ExpenseRoutes(r *gin.RouterGroup) {
	types := r.Group("/expense-types")
	types.Use(roles(anyRole))
	{
		types.GET("", controllers.ListExpenseTypes)
		types.GET("/:id", controllers.GetExpenseType)
		types.POST("", roles(adminRole), controllers.CreateExpenseType)
		types.PUT("/:id", roles(adminRole), controllers.UpdateExpenseType)
		types.PATCH("/:id/active", roles(adminRole), controllers.SetExpenseTypeActive)
		types.DELETE("/:id", roles(adminRole), controllers.DeleteExpenseType)
	}

	expenses := r.Group("/expense-transactions")
	expenses.Use(roles(anyRole))
	{
		expenses.GET("", controllers.ListExpenses)
		expenses.GET("/:id", controllers.GetExpense)
		expenses.POST("", controllers.CreateExpense)
		expenses.PUT("/:id", controllers.UpdateExpense)
		expenses.DELETE("/:id", controllers.DeleteExpense)
	}
}
