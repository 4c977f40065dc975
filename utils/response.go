package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends the standard success envelope
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends the standard error envelope and aborts the handler chain
func JSONError(c *gin.Context, status int, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
