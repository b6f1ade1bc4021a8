package web

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adamwoolhether/fetchpack/web/errs"
)

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

// messages overrides the stock English text for tags clients hit most.
var messages = map[string]string{
	"required": "This field is required",
	"http_url": "Must be an http or https URL",
}

func init() {
	english := en.New()

	tr, ok := ut.New(english, english).GetTranslator("en")
	if !ok {
		panic("web: no english translator")
	}
	translator = tr

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	// Report fields by their JSON name so clients see what they sent.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks val against its validate tags. Every failing field is
// reported in one errs.FieldErrors.
func Validate(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	failed, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}

	fields := make(errs.FieldErrors, len(failed))
	for i, fe := range failed {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fe.Translate(translator)
		}
		fields[i] = errs.FieldError{Field: fe.Field(), Err: msg}
	}

	return fields
}
