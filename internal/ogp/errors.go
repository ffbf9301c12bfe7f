package ogp

import (
	"errors"
	"net/http"
	"strings"

	"ogpimage/internal/feed"
	"ogpimage/internal/fetcher"
	"ogpimage/internal/font"
	"ogpimage/internal/render"
)

// BadRequestError lists required parameters that were absent or empty.
type BadRequestError struct {
	Missing []string
}

func (e *BadRequestError) Error() string {
	return "missing parameters: " + strings.Join(e.Missing, ", ")
}

// Status maps a pipeline failure to the HTTP status and plain text body sent
// to the client. Internal details stay in the server log.
func Status(err error) (int, string) {
	var (
		badReq   *BadRequestError
		cfgErr   *font.ConfigurationError
		weight   *font.UnknownWeightError
		decode   *font.DecodeError
		fetchErr *fetcher.FetchError
		layout   *render.LayoutError
		raster   *render.RasterError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, "Invalid Parameters"
	case errors.Is(err, feed.ErrNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "Server Error: " + cfgErr.Message
	case errors.As(err, &weight):
		return http.StatusInternalServerError, "Server Error: invalid font configuration"
	case errors.As(err, &fetchErr), errors.As(err, &decode):
		return http.StatusInternalServerError, "Server Error: upstream fetch failed"
	case errors.As(err, &layout), errors.As(err, &raster):
		return http.StatusInternalServerError, "Server Error: render failed"
	}
	return http.StatusInternalServerError, "Server Error: internal error"
}
