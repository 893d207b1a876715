package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 32 * 1024
)

// wsUpgrader é compartilhado entre upgrades. CheckOrigin permissivo é seguro
// porque o servidor só escuta em 127.0.0.1.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// Options configura o bridge de eventos.
type Options struct {
	// Port é a porta de escuta em 127.0.0.1. Zero usa porta atribuída pelo SO.
	Port int
}

// Bridge espelha os eventos do painel para um cliente WebSocket local
// (ferramentas externas, extensões de editor). Modelo de conexão única:
// uma nova conexão substitui a anterior, cobrindo reload do cliente.
//
// Ordem de locks: writeMu nunca é adquirido segurando mu.
type Bridge struct {
	opts Options

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed map[string]bool // nome do evento -> inscrito; "*" assina tudo

	// writeMu serializa WriteMessage; gorilla/websocket não suporta escritas
	// concorrentes.
	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

type subscribeMsg struct {
	Action string   `json:"action"` // "subscribe" | "unsubscribe"
	Events []string `json:"events"`
}

type eventFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewBridge cria o bridge; o servidor só sobe em Start.
func NewBridge(opts Options) *Bridge {
	return &Bridge{
		opts:       opts,
		subscribed: make(map[string]bool),
	}
}

// Start abre o listener em 127.0.0.1 e passa a aceitar conexões. Se a porta
// configurada estiver ocupada, cai para porta atribuída pelo SO.
func (b *Bridge) Start(ctx context.Context) error {
	if b.server != nil {
		return fmt.Errorf("eventbridge: already started")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", b.opts.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil && b.opts.Port != 0 {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	}
	if err != nil {
		return fmt.Errorf("eventbridge: listen: %w", err)
	}
	b.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	b.url = fmt.Sprintf("ws://127.0.0.1:%d/events", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", b.handleWS)

	b.server = &http.Server{
		Handler: mux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := b.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Printf("[EventBridge] server error: %v", serveErr)
		}
	}()

	log.Printf("[EventBridge] listening at %s", b.url)
	return nil
}

// Stop encerra o servidor e a conexão ativa. Idempotente.
func (b *Bridge) Stop() error {
	var stopErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		conn := b.conn
		b.conn = nil
		b.subscribed = make(map[string]bool)
		b.mu.Unlock()

		if conn != nil {
			_ = conn.Close()
		}

		if b.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := b.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("eventbridge: shutdown: %w", err)
			}
		}
	})
	return stopErr
}

// URL retorna o endereço do endpoint ("ws://127.0.0.1:<porta>/events").
// Vazio antes de Start.
func (b *Bridge) URL() string {
	return b.url
}

// HasActiveConnection informa se há cliente conectado.
func (b *Bridge) HasActiveConnection() bool {
	b.mu.RLock()
	active := b.conn != nil
	b.mu.RUnlock()
	return active
}

// Broadcast envia um evento JSON para o cliente, se conectado e inscrito.
// Seguro para chamada concorrente; no-op sem conexão.
func (b *Bridge) Broadcast(eventName string, data interface{}) {
	if strings.TrimSpace(eventName) == "" {
		return
	}

	b.mu.RLock()
	conn := b.conn
	subscribed := b.subscribed["*"] || b.subscribed[eventName]
	b.mu.RUnlock()

	if conn == nil || !subscribed {
		return
	}

	payload, err := json.Marshal(eventFrame{Event: eventName, Data: data})
	if err != nil {
		log.Printf("[EventBridge] failed to encode event %s: %v", eventName, err)
		return
	}

	if err := b.writeText(conn, payload); err != nil {
		log.Printf("[EventBridge] write failed, dropping connection: %v", err)
		b.dropConn(conn)
	}
}

// writeText escreve um frame de texto com deadline, serializado por writeMu.
func (b *Bridge) writeText(conn *websocket.Conn, payload []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	err := conn.WriteMessage(websocket.TextMessage, payload)
	_ = conn.SetWriteDeadline(time.Time{})
	return err
}

// dropConn limpa o estado apenas se conn ainda for a conexão atual, e fecha
// fora do lock.
func (b *Bridge) dropConn(conn *websocket.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
		b.subscribed = make(map[string]bool)
	}
	b.mu.Unlock()
	_ = conn.Close()
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[EventBridge] upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		_ = conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Nova conexão substitui a anterior (reload do cliente).
	b.mu.Lock()
	oldConn := b.conn
	b.conn = conn
	b.subscribed = map[string]bool{"*": true}
	b.mu.Unlock()

	if oldConn != nil {
		_ = oldConn.Close()
	}

	log.Printf("[EventBridge] client connected: %s", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go b.pingLoop(conn, pingDone)

	defer func() {
		close(pingDone)
		b.dropConn(conn)
		log.Printf("[EventBridge] client disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var subMsg subscribeMsg
		if jsonErr := json.Unmarshal(msg, &subMsg); jsonErr != nil {
			continue
		}
		b.applySubscription(conn, subMsg)
	}
}

// pingLoop mantém a detecção de conexão morta; sai quando done fecha ou o
// ping falha.
func (b *Bridge) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				b.writeMu.Unlock()
				b.dropConn(conn)
				return
			}
			pingErr := conn.WriteMessage(websocket.PingMessage, nil)
			_ = conn.SetWriteDeadline(time.Time{})
			b.writeMu.Unlock()

			if pingErr != nil {
				b.dropConn(conn)
				return
			}
		}
	}
}

// applySubscription aplica subscribe/unsubscribe apenas se conn ainda for a
// conexão atual; mensagens de conexões substituídas são descartadas.
func (b *Bridge) applySubscription(conn *websocket.Conn, msg subscribeMsg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != conn {
		return
	}

	switch msg.Action {
	case "subscribe":
		delete(b.subscribed, "*")
		for _, name := range msg.Events {
			if name == "" {
				continue
			}
			b.subscribed[name] = true
		}
	case "unsubscribe":
		for _, name := range msg.Events {
			delete(b.subscribed, name)
		}
	}
}
