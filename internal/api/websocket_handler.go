package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler streams runtime events (currently "flows:deploy")
// to connected editors — kept to exactly this one event stream since
// the editor itself lives elsewhere.
type WebSocketHandler struct {
	events *rtevents.Emitter
}

// Handle upgrades the connection and forwards every "flows:deploy"
// emission as a JSON text frame until the client disconnects.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	id, _ := h.events.On("flows:deploy", func(args ...interface{}) {
		_ = conn.WriteJSON(map[string]interface{}{"event": "flows:deploy", "ts": time.Now().UTC()})
	})
	defer h.events.RemoveListener("flows:deploy", id)

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	<-done
}
