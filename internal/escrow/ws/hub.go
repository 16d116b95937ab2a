package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// writeWait limita quanto uma escrita pode bloquear num cliente lento.
const writeWait = 10 * time.Second

// client serializa as escritas: o gorilla aceita um único writer por conexão.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	wait time.Duration
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por partida
// subs: matchID -> conjunto de clientes inscritos
type Hub struct {
	upgrader  websocket.Upgrader
	log       *zap.Logger
	writeWait time.Duration
	mu        sync.RWMutex
	subs      map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		log:       log,
		writeWait: writeWait,
		subs:      make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão; um cliente pode acompanhar várias partidas.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, wait: h.writeWait}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.MatchID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.MatchID]; !ok {
				h.subs[msg.MatchID] = make(map[*client]struct{})
			}
			h.subs[msg.MatchID][c] = struct{}{}
			h.mu.Unlock()
			_ = c.write([]byte(`{"type":"subscribed","matchId":` + quote(msg.MatchID) + `}`))
		case "unsubscribe":
			h.unsubscribe(msg.MatchID, c)
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}

	h.forget(c)
}

// forget remove o cliente de todas as partidas.
func (h *Hub) forget(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

func (h *Hub) unsubscribe(matchID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[matchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, matchID)
		}
	}
}

// Subscribers devolve quantos clientes acompanham a partida.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// Broadcast envia a atualização para todos os inscritos na partida.
func (h *Hub) Broadcast(update events.LiveUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.MatchID]))
	for c := range h.subs[update.MatchID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.String("match_id", update.MatchID), zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(b); err != nil {
			// conexão com escrita falha não se recupera no gorilla; o fechamento
			// encerra o loop de leitura de HandleWS
			h.log.Debug("ws write failed, dropping client", zap.String("match_id", update.MatchID), zap.Error(err))
			h.forget(c)
			_ = c.conn.Close()
		}
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
