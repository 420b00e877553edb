package handlers

import (
	"encoding/json"
	"net/http"
)

// PingMessage is the fixed liveness message.
const PingMessage = "HS YouTube Downloader API running perfectly ⚡"

// PingResponse is the body of GET /ping.
type PingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PingHandler answers liveness probes without touching any state.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(PingResponse{Status: "ok", Message: PingMessage})
}
