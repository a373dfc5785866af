package handler

import (
	"bytes"
	"net/http"
	"net/url"

	"relaychat/internal/app/storage"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
	"relaychat/internal/pkg/req"
	"relaychat/internal/pkg/resp"
)

const anonymousOwner = "anonymous"

// UploadResult is the body returned by POST /upload.
type UploadResult struct {
	URL string `json:"url"`
}

// HandleUpload stores the raw request body as a blob and returns its URL.
// The extension comes from the declared Content-Type.
func HandleUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil && deps.Config.UploadRequireAuth {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		body, mediaType, customErr := req.ReadRawBody(w, r, deps.Config.UploadMaxBytes)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		owner := anonymousOwner
		if payload != nil {
			// nicknames may contain '/' or other path characters
			owner = url.PathEscape(payload.Nickname)
		}
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}

		key := owner + "/" + randx.BlobName(storage.ExtensionFor(mediaType))

		location, err := deps.StorageService.Put(r.Context(), key, mediaType, bytes.NewReader(body), int64(len(body)))
		if err != nil {
			logx.Error(err, "Failed to store upload", "key", key, "size", len(body))
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		logx.Info("Upload stored", "key", key, "size", len(body), "content_type", mediaType)
		resp.RespondJSON(w, r, http.StatusOK, UploadResult{URL: location})
	}
}
