package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const watchWriteTimeout = 10 * time.Second

// handleWatchVideo pushes the video over a websocket whenever its
// transcription status changes. The store is the only source: the
// handler polls it and closes after a completed or failed state is sent.
func handleWatchVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, id := userID(r), chi.URLParam(r, "id")
		v, err := deps.Studio.GetVideo(user, id)
		if err != nil {
			writeServiceError(w, err, "video")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "video_id", id, "error", err)
			return
		}
		defer conn.Close()

		// The client never sends; reading only notices when it goes away.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func(v storage.Video) bool {
			conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			return conn.WriteJSON(v) == nil
		}
		if !send(v) || terminal(v.TranscriptionStatus) {
			closeWatch(conn)
			return
		}

		ticker := time.NewTicker(deps.WatchInterval)
		defer ticker.Stop()

		prev := v
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cur, err := deps.Studio.GetVideo(user, id)
			if errors.Is(err, storage.ErrNotFound) {
				closeWatch(conn)
				return
			}
			if err != nil {
				slog.Debug("watch poll failed", "video_id", id, "error", err)
				continue
			}
			if cur.TranscriptionStatus == prev.TranscriptionStatus && cur.TranscriptionError == prev.TranscriptionError {
				continue
			}
			if !send(cur) {
				return
			}
			prev = cur
			if terminal(cur.TranscriptionStatus) {
				closeWatch(conn)
				return
			}
		}
	}
}

func terminal(status string) bool {
	return status == storage.TranscriptionCompleted || status == storage.TranscriptionFailed
}

func closeWatch(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
