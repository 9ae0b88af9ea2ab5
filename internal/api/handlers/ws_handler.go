package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/yoockh/voicechallan/internal/services"
	"github.com/yoockh/voicechallan/internal/utils"
	"github.com/yoockh/voicechallan/internal/workers"
)

// TranscriptQueue hands dictated chunks to the worker pool.
type TranscriptQueue interface {
	Enqueue(ctx context.Context, draftID, text string, seq int64) error
}

// DefaultDrainTimeout bounds how long a socket waits for outstanding results
// after the client sends "end".
const DefaultDrainTimeout = 5 * time.Second

type WSHandler struct {
	transcripts services.TranscriptService
	queue       TranscriptQueue
	redis       *redis.Client
	upgrader    websocket.Upgrader

	DrainTimeout time.Duration
}

func NewWSHandler(transcripts services.TranscriptService, queue TranscriptQueue, rdb *redis.Client, allowOrigin func(origin string) bool) *WSHandler {
	return &WSHandler{
		transcripts: transcripts,
		queue:       queue,
		redis:        rdb,
		DrainTimeout: DefaultDrainTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // transcript|end
	Text string `json:"text"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (w *wsConn) close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func wsError(code utils.Code, msg string) workers.StatusMessage {
	return workers.StatusMessage{Type: "status", Status: "failed", Code: string(code), Message: msg}
}

// readResult is what the reader goroutine reports when it stops.
type readResult struct {
	ended   bool  // client sent "end"
	lastSeq int64 // last chunk queued
}

// payloadSeq extracts the seq of a worker result.
func payloadSeq(payload string) int64 {
	var v struct {
		Seq int64 `json:"seq"`
	}
	_ = json.Unmarshal([]byte(payload), &v)
	return v.Seq
}

// DraftWS streams dictated transcript chunks into a draft. Each "transcript"
// message is queued for the workers; their results come back over pub/sub and
// are forwarded unchanged. After "end" the socket keeps forwarding until the
// result for the last queued chunk arrives or DrainTimeout passes, then closes
// normally.
func (h *WSHandler) DraftWS(c *gin.Context) {
	draftID := c.Param("draft_id")
	if _, err := h.transcripts.GetDraft(c.Request.Context(), draftID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, workers.ItemsChannel(draftID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = wc.writeJSON(wsError(utils.CodeUnavailable, "failed to subscribe"))
		_ = wc.close(websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	readDone := make(chan readResult, 1)
	go func() {
		var res readResult
		defer func() { readDone <- res }()

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		var seq int64
		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeJSON(wsError(utils.CodeInvalidArgument, "invalid json"))
				continue
			}

			switch msg.Type {
			case "transcript":
				seq++
				if err := h.queue.Enqueue(ctx, draftID, msg.Text, seq); err != nil {
					_ = wc.writeJSON(wsError(utils.CodeUnavailable, "failed to enqueue transcript"))
					continue
				}
				res.lastSeq = seq
				_ = wc.writeJSON(workers.StatusMessage{Type: "status", Status: "queued", Message: "transcript queued", Seq: seq})

			case "end":
				res.ended = true
				return

			default:
				_ = wc.writeJSON(wsError(utils.CodeInvalidArgument, "unknown message type"))
			}
		}
	}()

	finish := func() {
		_ = wc.writeJSON(workers.StatusMessage{Type: "status", Status: "ended", Message: "dictation ended"})
		_ = wc.close(websocket.CloseNormalClosure, "dictation ended")
	}

	var (
		draining bool
		waitSeq  int64
		lastSeen int64
		drain    <-chan time.Time
	)
	msgs := pubsub.Channel()
	for {
		select {
		case res := <-readDone:
			if !res.ended {
				return
			}
			if res.lastSeq <= lastSeen {
				finish()
				return
			}
			draining, waitSeq = true, res.lastSeq
			timeout := h.DrainTimeout
			if timeout <= 0 {
				timeout = DefaultDrainTimeout
			}
			t := time.NewTimer(timeout)
			defer t.Stop()
			drain = t.C
		case <-drain:
			finish()
			return
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.writeText([]byte(m.Payload)); err != nil {
				return
			}
			if seq := payloadSeq(m.Payload); seq > lastSeen {
				lastSeen = seq
			}
			if draining && lastSeen >= waitSeq {
				finish()
				return
			}
		}
	}
}
