package kv

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/types"
)

// maxTxSize bounds the body of a transaction submission.
const maxTxSize = 1 << 20

// StateResponse is returned by GET /v1/state.
type StateResponse struct {
	Height    uint64 `json:"height"`
	DAHeight  uint64 `json:"da_height"`
	StateRoot string `json:"state_root"`
}

// SubmitResponse is returned by POST /v1/transactions.
type SubmitResponse struct {
	Hash string `json:"hash"`
}

// ValueResponse is returned by GET /v1/kv/{key}.
type ValueResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewHandler returns the HTTP handler of the execution API bound to api.
func NewHandler(api execution.APIContext) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		tx, err := io.ReadAll(io.LimitReader(r.Body, maxTxSize+1))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if len(tx) > maxTxSize {
			http.Error(w, "transaction too large", http.StatusRequestEntityTooLarge)
			return
		}

		if err := api.SubmitTransaction(r.Context(), tx); err != nil {
			switch {
			case errors.Is(err, execution.ErrMempoolFull):
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			case errors.Is(err, ErrDuplicateTx):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, ErrInvalidTx):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusAccepted, SubmitResponse{Hash: hex.EncodeToString(types.TxHash(tx))})
	})

	mux.HandleFunc("GET /v1/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StateResponse{
			Height:    api.Height(),
			DAHeight:  api.DAHeight(),
			StateRoot: hex.EncodeToString(api.StateRoot()),
		})
	})

	mux.HandleFunc("GET /v1/kv/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if key == "" || strings.ContainsAny(key, "/ ") {
			http.Error(w, "invalid key", http.StatusBadRequest)
			return
		}
		value, err := api.Get(r.Context(), key)
		if errors.Is(err, execution.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ValueResponse{Key: key, Value: string(value)})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
