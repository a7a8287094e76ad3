package middleware

import (
	"github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// LangWithTranslator picks the response language from the lang query or header.
// The choice is stored on the request only; the process default stays untouched.
// LangWithTranslator 从 lang 查询参数或请求头选择响应语言，只作用于当前请求
func LangWithTranslator(uni *ut.UniversalTranslator, defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var lang string

		if s, exist := c.GetQuery("lang"); exist {
			lang = s
		} else if s = c.GetHeader("lang"); len(s) != 0 {
			lang = s
		}

		lang = code.NormalizeLang(lang)
		if lang == "" {
			lang = code.NormalizeLang(defaultLang)
		}
		if lang == "" {
			lang = code.LangEN
		}
		c.Set(app.CtxKeyLang, lang)

		if uni != nil {
			locale := "en"
			if lang == code.LangZhCN {
				locale = "zh"
			}
			trans, found := uni.GetTranslator(locale)
			if !found {
				trans, _ = uni.GetTranslator("en")
			}
			c.Set(app.CtxKeyTrans, trans)
		}

		c.Next()
	}
}
