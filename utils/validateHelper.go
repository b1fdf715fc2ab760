package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs `validate` struct tags. Used to screen client credential
// rows before a sync cycle spends API quota on them.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
