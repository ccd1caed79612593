package runtime

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/paisatax/taxgraph/pkg/domain"
)

var paramsValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateParams checks session parameters against their struct tags.
func ValidateParams(params domain.SessionParams) error {
	if err := paramsValidator.Struct(params); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidParams, err)
	}
	return nil
}
