package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	derrors "labcert/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; all API payloads are small JSON.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validatable lets request types parse and validate beyond struct tags.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON body into T, applies validator tags
// and the type's own Validate. On failure it writes the error response
// and returns ok=false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, derrors.New(derrors.CodeValidation, "invalid request body"))
		return nil, false
	}

	if err := validate.Struct(&req); err != nil {
		WriteError(w, derrors.Wrap(err, derrors.CodeValidation, validationMessage(err)))
		return nil, false
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, err)
			return nil, false
		}
	}

	return &req, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "field " + fe.Field() + " failed validation rule " + fe.Tag()
	}
	return "invalid request"
}
