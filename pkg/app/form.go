package app

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ValidError struct {
	Key     string
	Message string
}

type ValidErrors []*ValidError

func (v *ValidError) Error() string {
	return v.Message
}

func (v ValidErrors) Error() string {
	return strings.Join(v.Errors(), ",")
}

func (v ValidErrors) Errors() []string {
	var errs []string
	for _, err := range v {
		errs = append(errs, err.Error())
	}
	return errs
}

// ErrorsToString joins every message into one line.
// ErrorsToString 将所有错误消息合并为一行
func (v ValidErrors) ErrorsToString() string {
	return v.Error()
}

// MapsToString returns field -> message.
// MapsToString 返回 字段 -> 错误消息
func (v ValidErrors) MapsToString() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		out[err.Key] = err.Message
	}
	return out
}

// BindAndValid binds query/form/json into v and runs the binding validators.
// BindAndValid 绑定请求参数并执行校验
func BindAndValid(c *gin.Context, v any) (bool, ValidErrors) {
	var errs ValidErrors
	err := c.ShouldBind(v)
	if err == nil {
		return true, nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		trans, hasTrans := GetTranslator(c)
		for _, e := range verrs {
			msg := e.Error()
			if hasTrans {
				msg = e.Translate(trans)
			}
			errs = append(errs, &ValidError{
				Key:     e.Field(),
				Message: msg,
			})
		}
		return false, errs
	}

	errs = append(errs, &ValidError{Key: "request", Message: err.Error()})
	return false, errs
}
