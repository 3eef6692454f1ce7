package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ExportRowsHeader carries the number of data rows in a CSV export.
const ExportRowsHeader = "X-Export-Rows"

// CORS creates a middleware that lets the dashboard frontend call the API from the
// allowed origins. Content-Disposition and X-Export-Rows are exposed so browsers can read
// the export file name and row count.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader, "Content-Disposition", ExportRowsHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	return cors.New(config)
}
