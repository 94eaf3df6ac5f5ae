package main

import (
	"bytes"
	"io"
	"net/http"

	"github.com/cours-de-latin/cgrule"
	"github.com/cours-de-latin/cgrule/adapter"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin validation is handled by the cors middleware wrapping mux.
		return true
	},
}

// handleRun runs the request body (a JSONL corpus) through the current
// grammar and writes the processed JSONL back, tagging each run with a
// correlation id for log matching.
func handleRun(store *grammarStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		runID := uuid.New().String()
		rlog := log.With(zap.String("run_id", runID))
		report := &cgrule.ZapAnomalyReporter{Log: rlog}

		g := store.get()
		win := cgrule.NewWindow(2)
		sc := adapter.NewLineScanner(r.Body)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("X-Run-Id", runID)

		cfg := cgrule.DefaultConfig()
		count := 0
		for {
			var sw *cgrule.SingleWindow
			if len(win.Next) > 0 {
				sw, win.Next = win.Next[0], win.Next[1:]
				win.PushCurrent(sw)
			} else {
				var err error
				sw, err = adapter.DecodeWindow(g, win, sc, report)
				if err == io.EOF {
					break
				}
				if err != nil {
					rlog.Warn("decode failed", zap.Error(err))
					break
				}
			}
			cgrule.RunWindow(g, win, sw, cfg.SectionMaxCount, nil, report)
			if err := adapter.EncodeWindow(g, sw, w); err != nil {
				rlog.Warn("encode failed", zap.Error(err))
				return
			}
			count++
		}
		rlog.Info("run complete", zap.Int("windows", count))
	}
}

// handleStream upgrades to a WebSocket and streams each processed
// window back as it finishes running, so a caller can watch a long
// corpus progress window by window instead of waiting for the whole
// response.
func handleStream(store *grammarStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := uuid.New().String()
		rlog := log.With(zap.String("run_id", runID))
		report := &cgrule.ZapAnomalyReporter{Log: rlog}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			rlog.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		g := store.get()
		win := cgrule.NewWindow(2)
		cfg := cgrule.DefaultConfig()

		for {
			_, body, err := conn.ReadMessage()
			if err != nil {
				return
			}
			sc := adapter.NewLineScanner(bytes.NewReader(body))
			sw, err := adapter.DecodeWindow(g, win, sc, report)
			if err != nil {
				continue
			}
			cgrule.RunWindow(g, win, sw, cfg.SectionMaxCount, nil, report)

			out, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := adapter.EncodeWindow(g, sw, out); err != nil {
				rlog.Warn("encode failed", zap.Error(err))
			}
			out.Close()
		}
	}
}
