package v1

import (
	"reflect"
	"strings"
	"sync"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the custom tags to gin's validator and reports
// field names by their JSON name.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
			return appointment.Status(fl.Field().String()).IsValid()
		})
	})
}

func formatValidationErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		var msg string
		switch e.Tag() {
		case "required":
			msg = "is required"
		case "email":
			msg = "must be a valid email address"
		case "min":
			if e.Kind() == reflect.String {
				msg = "must be at least " + e.Param() + " characters"
			} else {
				msg = "must be at least " + e.Param()
			}
		case "max":
			if e.Kind() == reflect.String {
				msg = "must be at most " + e.Param() + " characters"
			} else {
				msg = "must be at most " + e.Param()
			}
		case "gt":
			msg = "must be greater than " + e.Param()
		case "appointment_status":
			msg = "must be one of programada, confirmada, completada, cancelada, ausente"
		default:
			msg = "is invalid"
		}
		out = append(out, field+": "+msg)
	}
	return out
}
