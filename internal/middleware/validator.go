package middleware

import (
	"reflect"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the phone, week, homework_week and notblank tags to
// gin's binding validator and reports fields by their json names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"phone": func(fl validator.FieldLevel) bool {
			return utils.IsValidPhone(fl.Field().String())
		},
		"week": func(fl validator.FieldLevel) bool {
			_, err := models.ParseWeek(fl.Field().String())
			return err == nil
		},
		"homework_week": func(fl validator.FieldLevel) bool {
			w, err := models.ParseWeek(fl.Field().String())
			return err == nil && w.IsHomework()
		},
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// ValidationMessage turns the first failed rule into a message for the UI.
func ValidationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "요청 형식이 올바르지 않습니다."
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " 값을 입력해주세요."
	case "phone":
		return utils.ErrInvalidPhone.Error()
	case "week", "homework_week":
		return "알 수 없는 주차입니다."
	case "oneof":
		return fe.Field() + " 값은 " + fe.Param() + " 중 하나여야 합니다."
	case "max":
		return fe.Field() + " 값이 너무 깁니다."
	}
	return fe.Field() + " 값이 올바르지 않습니다."
}
