package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/notify"
)

// heartbeatInterval keeps idle notification streams alive through proxies.
const heartbeatInterval = 25 * time.Second

// NotificationStream is a source of dashboard notifications. *notify.Hub
// implements it.
type NotificationStream interface {
	Subscribe() (<-chan notify.Message, func())
}

// handleNotifications streams dashboard notifications via Server-Sent Events
// until the client disconnects or the stream shuts down.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stream == nil {
		http.NotFound(w, r)
		return
	}

	messages, unsubscribe := s.deps.Stream.Subscribe()
	defer unsubscribe()

	setSSEHeaders(w)
	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case m, ok := <-messages:
			if !ok {
				return
			}
			data, err := json.Marshal(m)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", m.ID, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}
