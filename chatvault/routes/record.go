package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatvault/chatvault/config"
	"chatvault/chatvault/controllers"
	"chatvault/chatvault/middlewares"
	"chatvault/chatvault/sources/store"
	"chatvault/chatvault/utils/types"

	"github.com/go-chi/chi/v5"
)

func RecordRoutes(ctrl *controllers.RecordController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		if cfg.AuthSecret != "" {
			gr.Use(middlewares.AuthMiddleware(cfg))
		}
		// POST /record/ : persist one message event
		gr.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.RecordRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			accepted, err := ctrl.Record(r.Context(), req)
			if err != nil {
				if errors.Is(err, store.ErrEmptyChatID) ||
					errors.Is(err, store.ErrBadKind) ||
					errors.Is(err, store.ErrBadRole) {
					http.Error(w, err.Error(), http.StatusBadRequest)
				} else {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if accepted {
				w.WriteHeader(http.StatusAccepted)
				json.NewEncoder(w).Encode(types.RecordResponse{Status: "recorded"})
				return
			}
			json.NewEncoder(w).Encode(types.RecordResponse{Status: "skipped"})
		})
	})
	return r
}
