package httpserv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorWithCode is an error that carries the HTTP status code it should be reported with.
// Its message is returned to the client, so it must not contain sensitive details.
type ErrorWithCode struct {
	Message    string
	StatusCode int
}

func (e ErrorWithCode) Error() string {
	return e.Message
}

func NewErrorWithCode(message string, statusCode int) error {
	return &ErrorWithCode{
		Message:    message,
		StatusCode: statusCode,
	}
}

// BadRequest creates an error with a status code of 400
func BadRequest(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusBadRequest)
}

func NotFound(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusNotFound)
}

func Forbidden(msg string, args ...any) error {
	return NewErrorWithCode(fmt.Sprintf(msg, args...), http.StatusForbidden)
}

// ResponseError is implemented by errors that render their own response body.
type ResponseError interface {
	error
	StatusCode() int
	ResponseBody() any
}

// ErrorResponse is the JSON body written for errors that don't render their own.
type ErrorResponse struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// WriteError logs the error and writes it as JSON response. ResponseError and ErrorWithCode determine
// the status code and body; any other error results in a 500 with a generic message.
func WriteError(ctx context.Context, httpResponse http.ResponseWriter, err error, desc string) {
	var responseErr ResponseError
	if errors.As(err, &responseErr) {
		log.Ctx(ctx).Info().Err(err).Msgf("%s failed", desc)
		WriteJSON(ctx, httpResponse, responseErr.StatusCode(), responseErr.ResponseBody())
		return
	}
	statusCode := http.StatusInternalServerError
	message := desc + " failed"
	var errorWithCode *ErrorWithCode
	if errors.As(err, &errorWithCode) && errorWithCode.StatusCode > 0 {
		statusCode = errorWithCode.StatusCode
		message = errorWithCode.Message
	}
	if statusCode >= 500 {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed", desc)
	} else {
		log.Ctx(ctx).Info().Err(err).Msgf("%s failed", desc)
	}
	WriteJSON(ctx, httpResponse, statusCode, ErrorResponse{
		Message:    message,
		Error:      http.StatusText(statusCode),
		StatusCode: statusCode,
	})
}

// WriteJSON writes the given value as JSON with the given status code.
func WriteJSON(ctx context.Context, httpResponse http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to marshal response body")
		httpResponse.WriteHeader(http.StatusInternalServerError)
		return
	}
	httpResponse.Header().Set("Content-Type", "application/json")
	httpResponse.WriteHeader(statusCode)
	if _, err := httpResponse.Write(data); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to write response body")
	}
}

// ReadJSON decodes the request body into target, reporting malformed bodies as 400.
func ReadJSON(httpRequest *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, httpRequest.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		return BadRequest("invalid request body: %v", err)
	}
	return nil
}
