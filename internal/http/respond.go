package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"taskflow/internal/apperrors"
)

const (
	msgInvalidBody = "Invalid request body"
	msgInternal    = "Internal server error"
)

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := h.errorBody(c, err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, body)
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	h.respondError(c, err)
	c.Abort()
}

func (h *Handler) errorBody(c *gin.Context, err error) (int, gin.H) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"code":   apperrors.CodeValidationFailed,
			"fields": fieldErrors(validationErrs),
		}
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		h.logger.WithField(requestIDKey, c.GetString(requestIDKey)).Errorf("unhandled error: %v", err)
		return http.StatusInternalServerError, gin.H{"error": msgInternal, "code": apperrors.CodeInternal}
	}

	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if len(appErr.Metadata) > 0 {
		body["metadata"] = appErr.Metadata
	}
	if appErr.Code == apperrors.CodeInternal {
		h.logger.WithField(requestIDKey, c.GetString(requestIDKey)).Errorf("internal error: %v", err)
		body["error"] = msgInternal
	}
	return appErr.Code.HTTPStatus(), body
}

// bindError converts a binding failure into a VALIDATION_FAILED error.
// Structural failures (bad JSON, wrong types, bad timestamps) keep their own
// message; tag failures are reported per field.
func bindError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return validationErrs
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		numErr    *strconv.NumError
		timeErr   *time.ParseError
	)
	switch {
	case errors.Is(err, io.EOF):
		return apperrors.Validation("Request body is required")
	case errors.As(err, &syntaxErr):
		return apperrors.Validation(msgInvalidBody)
	case errors.As(err, &typeErr):
		return apperrors.Validation("Invalid value for field " + typeErr.Field)
	case errors.As(err, &numErr):
		return apperrors.Validation("Invalid number " + strconv.Quote(numErr.Num))
	case errors.As(err, &timeErr):
		return apperrors.Validation("Invalid timestamp, expected RFC3339")
	default:
		return apperrors.Wrap(apperrors.CodeValidationFailed, msgInvalidBody, err)
	}
}

func fieldErrors(errs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

var fieldNamesOnce sync.Once

// useWireFieldNames makes validation errors report json or form tag names.
func useWireFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireFieldName)
	})
}

func wireFieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}
