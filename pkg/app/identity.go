package app

import "github.com/gin-gonic/gin"

// Context keys written by the identity middleware.
// 身份中间件写入的上下文键
const (
	CtxKeyUID         = "uid"
	CtxKeySource      = "request_source"
	CtxKeyAuthType    = "auth_type"
	CtxKeyTokenPrefix = "token_prefix"
)

// GetUID extracts the user ID from the request context.
// GetUID 从请求上下文中获取用户 ID
func GetUID(ctx *gin.Context) (out int64) {
	if v, exist := ctx.Get(CtxKeyUID); exist {
		if uid, ok := v.(int64); ok {
			out = uid
		}
	}
	return
}

// GetAudit extracts the provenance strings forwarded by the auth gateway.
// GetAudit 获取认证网关转发的来源信息
func GetAudit(ctx *gin.Context) (source, authType, tokenPrefix string) {
	return ctx.GetString(CtxKeySource), ctx.GetString(CtxKeyAuthType), ctx.GetString(CtxKeyTokenPrefix)
}
