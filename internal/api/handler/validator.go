package handler

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studioflow/internal/service"
)

// RegisterValidators 向 gin 的校验引擎注册自定义 tag
//
//	ymd   — YYYY-MM-DD 且为真实日期
//	clock — HH:MM 或 HH:MM:SS
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	if err := v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return service.IsValidDate(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return service.IsValidClock(fl.Field().String())
	})
}
