package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"chatvault/chatvault/controllers"
	"chatvault/chatvault/services/live"
	"chatvault/chatvault/sources/store"
	"chatvault/chatvault/webui"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

func ViewerRoutes(ctrl *controllers.ViewerController, hub *live.Hub) chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(webui.IndexHTML)
	})

	r.Get("/api/chats", func(w http.ResponseWriter, r *http.Request) {
		chats, err := ctrl.ListChats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chats)
	})

	r.Get("/api/chat/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		result, err := ctrl.GetChat(r.Context(), filename, page, size)
		if err != nil {
			if errors.Is(err, store.ErrLogNotFound) {
				http.Error(w, `{"error": "chat not found"}`, http.StatusNotFound)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := ctrl.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	// live tail of appended records, optionally limited to ?chat={filename}
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := r.Context()
		id, events := hub.Subscribe(r.URL.Query().Get("chat"))
		defer hub.Unsubscribe(id)

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-events:
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					return
				}
			}
		}
	})

	return r
}
