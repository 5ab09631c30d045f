// Package validation validates LLM-produced domain objects at the boundary
// where their JSON is parsed into Go structs, using struct-tag validation
// backed by go-playground/validator. Insight candidates are the one type
// validated this way; patches and schemas are not.
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/adronaut/strategist-core/internal/apperrors"
)

var (
	once      sync.Once
	validate  *validator.Validate
	learningKeywords = []string{"pilot", "test", "experiment", "a/b", "validate", "trial"}
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ContainsLearningKeyword reports whether action text contains at least
// one of the learning-oriented keywords required of weak-evidence actions
// (spec.md §3 InsightCandidate invariant).
func ContainsLearningKeyword(action string) bool {
	lower := strings.ToLower(action)
	for _, kw := range learningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidateStruct runs go-playground/validator over v using its struct
// tags and converts the first failure into an *apperrors.AppError of type
// ErrorTypeValidation.
func ValidateStruct(v interface{}) error {
	if err := instance().Struct(v); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewValidationError(err.Error())
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		return apperrors.NewValidationError(strings.Join(msgs, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
