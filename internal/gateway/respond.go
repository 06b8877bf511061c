package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"clipwatch/internal/api"
	"clipwatch/internal/logging"
	"clipwatch/internal/services"
)

const maxJSONBody = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func validation() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
				return name
			}
			return fld.Name
		})
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	})
	return validate, translator
}

// decodeJSON reads a JSON body into dst and validates it. Failures are
// classified as validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "gateway", "decode", "request body is empty", nil)
		}
		return services.Wrap(services.ErrValidation, "gateway", "decode", "invalid JSON", err)
	}
	v, trans := validation()
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return services.Wrap(services.ErrValidation, "", "", verrs[0].Translate(trans), nil)
		}
		return services.Wrap(services.ErrValidation, "gateway", "validate", "invalid request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

// fail maps a classified error to its status. Server-side failures are logged
// with the request's correlation id.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := services.HTTPStatus(err)
	message := services.Message(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), op+" failed", "gateway_"+strings.ReplaceAll(op, " ", "_")+"_failed",
			logging.String(logging.FieldErrorHint, "check gateway logs and store connectivity"),
			logging.Error(err),
		)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	writeError(w, status, message)
}
