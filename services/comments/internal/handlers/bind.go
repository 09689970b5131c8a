package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator; field names in errors are
// taken from json tags.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

var errInvalidJSON = errors.New("invalid JSON")

// bindError is a malformed or invalid request body.
type bindError struct {
	code    string
	message string
	field   string
}

func (e *bindError) Error() string { return e.message }

// decodeJSON reads at most 1 MiB of JSON into T and validates it. An empty
// body decodes to the zero T when allowEmpty is set.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, allowEmpty bool) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return v, &bindError{code: "INVALID_JSON", message: errInvalidJSON.Error()}
		}
	}
	if err := validatorInstance().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return v, &bindError{
				code:    "VALIDATION",
				message: fe.Field() + " is invalid (" + fe.Tag() + ")",
				field:   fe.Field(),
			}
		}
		return v, &bindError{code: "VALIDATION", message: err.Error()}
	}
	return v, nil
}
