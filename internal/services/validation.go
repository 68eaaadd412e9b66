package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var externalCodePrefix = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}`)

// IsExternalCode checks the minimal account code shape: two capital letters,
// two digits, 15 to 34 characters overall.
func IsExternalCode(code string) bool {
	return len(code) >= 15 && len(code) <= 34 && externalCodePrefix.MatchString(code)
}

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("extcode", func(fl validator.FieldLevel) bool {
		return IsExternalCode(fl.Field().String())
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates s and converts failures into a *ValidationError.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	err := vh.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describeTag(fe))
	}
	return verr
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "extcode":
		return "must be 2 letters, 2 digits and 15 to 34 characters long"
	case "nefield":
		return "must differ from " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return fmt.Sprintf("failed on '%s' tag", fe.Tag())
}

// SendErrorResponse sends a JSON error response. Field details are included
// when err is a *ValidationError.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		errorResp.Details = verr.Fields
	}

	json.NewEncoder(w).Encode(errorResp)
}
