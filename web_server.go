package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSHub manages WebSocket connections and broadcasts run telemetry to any
// attached dashboard clients.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex

	// last message per type, replayed to newly connected clients
	lastByType map[string]WSMessage
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type string `json:"type"` // "progress", "allocation", "backtest", "status"
	Data any    `json:"data"`
	Time int64  `json:"time"` // Unix timestamp
}

// WSMessageType constants
const (
	MsgTypeProgress   = "progress"
	MsgTypeAllocation = "allocation"
	MsgTypeBacktest   = "backtest"
	MsgTypeStatus     = "status"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard is bound to localhost; skip origin checks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewWSHub creates the hub and starts its broadcast loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan WSMessage, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		lastByType: make(map[string]WSMessage),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mutex.Lock()
			h.clients[conn] = true
			for _, msg := range h.lastByType {
				conn.WriteJSON(msg)
			}
			h.mutex.Unlock()

		case conn := <-h.unregister:
			h.mutex.Lock()
			if h.clients[conn] {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.broadcast:
			h.mutex.Lock()
			h.lastByType[msg.Type] = msg
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Broadcast queues a message for all connected clients. Safe on a nil hub so
// callers never have to guard the dashboard being disabled.
func (h *WSHub) Broadcast(msgType string, data any) {
	if h == nil {
		return
	}
	msg := WSMessage{Type: msgType, Data: data, Time: time.Now().Unix()}
	select {
	case h.broadcast <- msg:
	default:
		// Slow dashboard never blocks a training loop; drop the update.
	}
}

// BroadcastProgress pushes one training progress update.
func (h *WSHub) BroadcastProgress(epoch, epochs int, trainLoss, valLoss, bestVal float64) {
	h.Broadcast(MsgTypeProgress, map[string]any{
		"epoch":      epoch,
		"epochs":     epochs,
		"train_loss": trainLoss,
		"val_loss":   valLoss,
		"best_val":   bestVal,
	})
}

// BroadcastAllocation pushes a finished allocation.
func (h *WSHub) BroadcastAllocation(asOf, rule string, weights map[string]float64) {
	h.Broadcast(MsgTypeAllocation, map[string]any{
		"as_of":   asOf,
		"rule":    rule,
		"weights": weights,
	})
}

// BroadcastBacktest pushes backtest summary stats.
func (h *WSHub) BroadcastBacktest(res BacktestResult) {
	h.Broadcast(MsgTypeBacktest, map[string]any{
		"rule":           res.Rule,
		"periods":        len(res.Periods),
		"total_return":   res.TotalReturn,
		"geo_avg_period": res.GeoAvgPeriod,
		"max_dd":         res.MaxDD,
		"win_rate":       res.WinRate,
	})
}

// StartWebServer serves the dashboard endpoints on addr:
// GET /api/status returns the last message of every type as JSON;
// GET /ws streams updates over a websocket.
func (h *WSHub) StartWebServer(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		h.mutex.RLock()
		snapshot := make(map[string]WSMessage, len(h.lastByType))
		for k, v := range h.lastByType {
			snapshot[k] = v
		}
		h.mutex.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		h.register <- conn

		// Reader loop only to detect close; the dashboard never sends.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister <- conn
					return
				}
			}
		}()
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard listen %s: %w", addr, err)
	}
	log.Printf("dashboard listening on http://%s", ln.Addr())

	go http.Serve(ln, mux)
	return nil
}
