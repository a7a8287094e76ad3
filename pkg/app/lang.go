package app

import (
	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// Context keys set by the language middleware
// 语言中间件写入的上下文键
const (
	CtxKeyLang  = "lang"
	CtxKeyTrans = "trans"
)

// GetLang returns the request language, or "" when the middleware did not run.
// GetLang 获取请求语言，未经过语言中间件时返回空串
func GetLang(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(CtxKeyLang)
}

// GetTranslator 获取请求的校验错误翻译器
func GetTranslator(c *gin.Context) (ut.Translator, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Get(CtxKeyTrans)
	if !ok {
		return nil, false
	}
	trans, ok := v.(ut.Translator)
	return trans, ok
}
