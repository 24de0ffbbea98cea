package routes

import (
	"github.com/gin-gonic/gin"

	"go_screener_backend/controllers"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, stock *controllers.StockController, admin *controllers.AdminController) {
	api := router.Group("/api")
	{
		stocks := api.Group("/stocks")
		{
			stocks.GET("/:symbol", stock.GetStock)
			stocks.GET("/:symbol/prices", stock.GetStockPrices)
		}

		adminGroup := api.Group("/admin")
		{
			jobs := adminGroup.Group("/jobs")
			{
				jobs.POST("/backfill", admin.TriggerBackfill)
				jobs.POST("/retry-queue", admin.TriggerRetryQueue)
				jobs.POST("/delta-sync", admin.TriggerDeltaSync)
				jobs.POST("/fundamentals", admin.TriggerFundamentals)
			}
			adminGroup.GET("/sync/status", admin.GetSyncStatus)
		}
	}
}
