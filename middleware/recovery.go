package middleware

import (
	"net/http"

	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 捕获 panic，只返回通用错误信息
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		utils.Logger.Error("unhandled error",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(RequestIDKey)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
			Message: "Something went wrong on the server!",
		})
	})
}
