package campaign

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	var msgs []string
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			if fe.Kind() == reflect.Slice {
				msgs = append(msgs, field+" must have at least "+fe.Param()+" entries")
			} else {
				msgs = append(msgs, field+" must be at least "+fe.Param()+" characters")
			}
		case "email":
			msgs = append(msgs, field+" must contain valid email addresses")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return &ValidationError{Message: strings.Join(msgs, ", ")}
}
