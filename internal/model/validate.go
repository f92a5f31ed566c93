package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request against its field constraints before it is
// submitted
func (r *DeploymentRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid deployment request: %w", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return InputErrorf("invalid-request", "The deployment %s is required", fe.Field())
	case "oneof":
		return InputErrorf("invalid-request", "Invalid %s %q (expected one of: %s)", fe.Field(), fe.Value(), fe.Param())
	default:
		return InputErrorf("invalid-request", "Invalid %s %q", fe.Field(), fe.Value())
	}
}
