package app

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	validatorV10 "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

var (
	translatorOnce sync.Once
	translator     *ut.UniversalTranslator
	translatorErr  error
)

// NewValidatorTranslator registers json field names and en/zh messages on gin's validator.
// The binding validator is process-wide, so registration runs once.
// NewValidatorTranslator 为 gin 校验器注册 json 字段名与中英文错误消息，进程内只注册一次
func NewValidatorTranslator() (*ut.UniversalTranslator, error) {
	translatorOnce.Do(func() {
		uni := ut.New(en.New(), en.New(), zh.New())

		validate, ok := binding.Validator.Engine().(*validatorV10.Validate)
		if !ok {
			translator = uni
			return
		}

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enTran, _ := uni.GetTranslator("en")
		zhTran, _ := uni.GetTranslator("zh")
		if err := en_translations.RegisterDefaultTranslations(validate, enTran); err != nil {
			translatorErr = err
			return
		}
		if err := zh_translations.RegisterDefaultTranslations(validate, zhTran); err != nil {
			translatorErr = err
			return
		}
		translator = uni
	})
	return translator, translatorErr
}
