/*
Package req reads and checks HTTP request bodies.
*/
package req

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"relaychat/internal/pkg/errs"
)

// ReadRawBody reads the whole request body, refusing anything larger than limit bytes.
// It also returns the media type of the declared Content-Type, parameters stripped.
func ReadRawBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, *errs.CustomError) {
	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, "", errs.NewError(errs.ErrUnsupportedMediaType)
		}
		mediaType = parsed
	}

	if r.ContentLength > limit {
		return nil, "", errs.NewError(errs.ErrRequestEntityTooLarge)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return nil, "", errs.NewError(errs.ErrInvalidParams)
	}

	if len(body) == 0 {
		return nil, "", errs.NewError(errs.ErrInvalidParams)
	}

	return body, mediaType, nil
}
