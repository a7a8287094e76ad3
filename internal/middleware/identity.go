package middleware

import (
	"strconv"

	"github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// Headers set by the upstream auth gateway.
// 上游认证网关设置的请求头
const (
	HeaderUserID      = "X-User-ID"
	HeaderSource      = "X-Request-Source"
	HeaderAuthType    = "X-Auth-Type"
	HeaderTokenPrefix = "X-Token-Prefix"
)

// Identity reads the caller identity and audit provenance from gateway headers.
// Requests without a positive user id are rejected.
// Identity 从网关请求头读取调用者身份与审计来源，缺少有效用户 ID 的请求会被拒绝
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || uid <= 0 {
			app.NewResponse(c).ToResponse(code.ErrorInvalidUser)
			c.Abort()
			return
		}

		c.Set(app.CtxKeyUID, uid)
		c.Set(app.CtxKeySource, c.GetHeader(HeaderSource))
		c.Set(app.CtxKeyAuthType, c.GetHeader(HeaderAuthType))
		c.Set(app.CtxKeyTokenPrefix, c.GetHeader(HeaderTokenPrefix))

		c.Next()
	}
}
