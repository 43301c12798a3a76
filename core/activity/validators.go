package activity

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/matembezi/core"
)

var (
	nameTag  = "activityname"
	nameText = "invalid name: 1 to 50 characters, no surrounding or repeated whitespace, none of " + InvalidNameChars

	langCodeTag  = "langcode"
	langCodeText = "unsupported language code"

	typeTag  = "activitytype"
	typeText = "unrecognized activity type"
)

// InitValidators registers the activity validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(nameTag, func(fl validator.FieldLevel) bool {
		return RequireValidName(fl.Field().String(), fl.FieldName()) == nil
	})
	core.RegisterCustomTranslation(validate, translator, nameTag, nameText)

	_ = validate.RegisterValidation(langCodeTag, func(fl validator.FieldLevel) bool {
		return IsSupportedLanguage(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, langCodeTag, langCodeText)

	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}
