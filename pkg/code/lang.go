package code

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Supported languages // 支持的语言
const (
	LangEN   = "en"
	LangZhCN = "zh_cn"
)

// lang holds the message of a code in every supported language.
// lang 存放一个结果码在各语言下的消息
type lang struct {
	en    string
	zh_cn string
}

var current atomic.Value

// GetMessage returns the message in the active language, falling back to English.
// GetMessage 返回当前语言的消息，缺失时回退英文
func (l lang) GetMessage() string {
	return l.Message(GetGlobalDefaultLang())
}

// Message returns the message in the given language, falling back to English.
// Message 返回指定语言的消息，缺失时回退英文
func (l lang) Message(language string) string {
	if NormalizeLang(language) == LangZhCN && l.zh_cn != "" {
		return l.zh_cn
	}
	return l.en
}

// NormalizeLang maps a request language such as "zh-CN" or "zh" onto a supported language.
// NormalizeLang 将请求语言（如 zh-CN、zh）映射到支持的语言
func NormalizeLang(language string) string {
	language = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(language), "-", "_"))
	switch {
	case language == "":
		return ""
	case strings.HasPrefix(language, "zh"):
		return LangZhCN
	default:
		return LangEN
	}
}

// SetGlobalDefaultLang switches the message language. Unknown languages reset to English.
// SetGlobalDefaultLang 切换消息语言，未知语言重置为英文并返回错误
func SetGlobalDefaultLang(language string) error {
	switch language {
	case LangEN, LangZhCN:
		current.Store(language)
		return nil
	default:
		current.Store(LangEN)
		return fmt.Errorf("unsupported language %q, defaulting to %s", language, LangEN)
	}
}

// GetGlobalDefaultLang 获取当前消息语言
func GetGlobalDefaultLang() string {
	if l, ok := current.Load().(string); ok {
		return l
	}
	return LangEN
}
