package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

var statusByCode = map[pkgerrors.Code]int{
	pkgerrors.CodeValidation:    http.StatusBadRequest,
	pkgerrors.CodeNotFound:      http.StatusNotFound,
	pkgerrors.CodeConflict:      http.StatusConflict,
	pkgerrors.CodeStateConflict: http.StatusConflict,
	pkgerrors.CodeConfiguration: http.StatusInternalServerError,
	pkgerrors.CodeUnavailable:   http.StatusServiceUnavailable,
	pkgerrors.CodeTimeout:       http.StatusGatewayTimeout,
	pkgerrors.CodeInternal:      http.StatusInternalServerError,
	pkgerrors.CodeDependency:    http.StatusServiceUnavailable,
}

// HTTPStatus maps an error code onto its response status.
func HTTPStatus(code pkgerrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			Retryable: typed.Retryable(),
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		logg.Error(ctx, "request.error", err)
	}

	writeJSON(w, HTTPStatus(typed.Code()), payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
