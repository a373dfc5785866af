package handler

import (
	"net/http"

	"relaychat/internal/app/chat"
	"relaychat/internal/pkg/resp"
)

type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	chat.Stats
}

// HandleHealth reports liveness plus what the relay currently holds.
func HandleHealth(manager *chat.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondJSON(w, r, http.StatusOK, healthBody{
			Status:  "ok",
			Service: "relaychat",
			Stats:   manager.Stats(),
		})
	}
}
