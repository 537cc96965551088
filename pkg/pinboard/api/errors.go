package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// statusFor maps pinboard errors onto HTTP status codes.
func statusFor(err error) int {
	var vErr *pinboard.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pinboard.ErrInvalidAssetType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pinboard.ErrAssetTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pinboard.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, pinboard.ErrNotFound), errors.Is(err, assets.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, pinboard.ErrCreateInFlight):
		return http.StatusConflict
	case errors.Is(err, pinboard.ErrInvalidMode), errors.Is(err, pinboard.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, pinboard.ErrUploadFailed),
		errors.Is(err, pinboard.ErrCreateFailed),
		errors.Is(err, pinboard.ErrAppendFailed),
		errors.Is(err, pinboard.ErrSaveFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var vErr *pinboard.ValidationError
	if errors.As(err, &vErr) {
		resp.Missing = vErr.Missing
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
