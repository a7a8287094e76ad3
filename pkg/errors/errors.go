// Package errors 统一 HTTP 错误响应
package errors

import (
	"errors"
	"net/http"
	"time"

	"github.com/haierkeys/fast-content-service/internal/middleware"
	"github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// AppError is the JSON body returned for failed requests.
// AppError 失败请求返回的 JSON 结构
type AppError struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	TraceID   string    `json:"traceId,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`

	code *code.Code
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// FromCode 从结果码创建 AppError
func FromCode(c *code.Code, cause error) *AppError {
	return &AppError{
		Code:      c.Code(),
		Message:   c.Msg(),
		Details:   c.Details(),
		Cause:     cause,
		Timestamp: time.Now(),
		code:      c,
	}
}

// From converts any error into an AppError. Errors that carry no code become ErrorServerInternal.
// From 将任意错误转换为 AppError，不含结果码的错误视为内部错误
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var codeErr *code.Code
	if errors.As(err, &codeErr) {
		return FromCode(codeErr, err)
	}

	return FromCode(code.ErrorServerInternal, err)
}

// ErrorResponse 写入错误响应并附带请求的 TraceID
func ErrorResponse(c *gin.Context, err error) {
	appErr := From(err)
	if lang := app.GetLang(c); lang != "" && appErr.code != nil {
		appErr.Message = appErr.code.MsgIn(lang)
	}
	appErr.TraceID = middleware.GetTraceIDFromGin(c)
	c.JSON(http.StatusOK, appErr)
}
