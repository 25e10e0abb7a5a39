package middleware

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutripal/internal/pkg/common"
)

// errBodyTooLarge 請求體超過上限
var errBodyTooLarge = common.NewError("REQUEST_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, nil)

// BodySizeLimit 以 Content-Length 先擋下過大的請求，其餘交給 MaxBytesReader
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			common.LogWarn("請求體過大",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("max_size", maxSize),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
			)
			c.AbortWithStatusJSON(errBodyTooLarge.Status, errBodyTooLarge.ToResponse(false))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
