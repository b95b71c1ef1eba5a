package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	uni      *ut.UniversalTranslator
)

func init() {
	validate = validator.New()

	enLocale := en.New()
	uni = ut.New(enLocale, enLocale)
}

// Respond converts a Go value to JSON and sends it to the client. If
// statusCode is 204 (No Content), no body is sent and data is ignored.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if err := SetStatusCode(ctx, statusCode); err != nil {
		return err
	}

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if _, err := w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

// Decode reads the body of an HTTP request looking for a JSON document. The
// body is decoded into the provided value and then struct-tag validation is
// run against it using go-playground/validator.
func Decode(r *http.Request, val any) error {
	if err := json.NewDecoder(r.Body).Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Struct(val); err != nil {
		var invalidValidationError *validator.InvalidValidationError
		if errors.As(err, &invalidValidationError) {
			return err
		}

		fields := fieldErrors(err.(validator.ValidationErrors))
		return &validationError{Fields: fields}
	}

	return nil
}

// fieldErrors converts validator field errors into a simple field -> message map.
func fieldErrors(verrors validator.ValidationErrors) map[string]string {
	fields := make(map[string]string)
	for _, verror := range verrors {
		trans, _ := uni.GetTranslator("en")
		fields[verror.Field()] = verror.Translate(trans)
	}
	return fields
}

// validationError is returned when Decode runs struct validation that fails.
type validationError struct {
	Fields map[string]string
}

func (ve *validationError) Error() string {
	return fmt.Sprintf("validation failed on fields: %v", ve.Fields)
}
