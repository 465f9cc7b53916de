package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/core/execution"
)

// SyncResponse is returned by GET /v1/sync.
type SyncResponse struct {
	Height    uint64 `json:"height"`
	DAHeight  uint64 `json:"da_height"`
	StateRoot string `json:"state_root"`
}

// ContextProvider returns the bound execution context, or nil before the node runs.
type ContextProvider func() execution.APIContext

// RegisterCustomHTTPEndpoints is the designated place to add new plain HTTP handlers.
func RegisterCustomHTTPEndpoints(mux *http.ServeMux, provider ContextProvider, logger zerolog.Logger) {
	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	// Readiness endpoint
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")

		api := provider()
		if api == nil {
			http.Error(w, "UNREADY: execution not bound", http.StatusServiceUnavailable)
			return
		}

		// If no blocks yet, consider unready
		if api.Height() == 0 {
			http.Error(w, "UNREADY: no blocks yet", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "READY")
	})

	mux.HandleFunc("GET /v1/sync", func(w http.ResponseWriter, r *http.Request) {
		api := provider()
		if api == nil {
			http.Error(w, "execution not bound", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(SyncResponse{
			Height:    api.Height(),
			DAHeight:  api.DAHeight(),
			StateRoot: hex.EncodeToString(api.StateRoot()),
		}); err != nil {
			logger.Error().Err(err).Msg("failed to write sync response")
		}
	})
}
