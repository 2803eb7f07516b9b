package roster

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/umputun/techbe/app/store"
)

var validate = newValidator()

// ValidationError lists required fields missing in a record
type ValidationError struct {
	Fields []string // json names, i.e. "nom", "prenom", "email"
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Has checks if field is in the list of missing fields
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Validate checks presence of last name, first name and email. Whitespace-only value counts as
// missing. Phone and active flag are not checked.
func Validate(t store.Technician) error {
	err := validate.Struct(Normalize(t))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	res := &ValidationError{}
	for _, fe := range verrs {
		res.Fields = append(res.Fields, fe.Field())
	}
	return res
}

// newValidator makes validator reporting fields by their json names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
