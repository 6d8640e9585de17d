package events

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pingInterval     = 54 * time.Second
	pongWait         = 60 * time.Second
)

// WebSocketBroker fans published events out to every connected frontend over
// a plain net/http listener. Slow subscribers are disconnected rather than
// allowed to block publishing.
type WebSocketBroker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
	metrics  types.MetricsManager
	addr     string
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	mu       sync.RWMutex
	state    atomic.Value
	wg       sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewWebSocketBroker(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (*WebSocketBroker, error) {
	eventsCfg := config.GetConfig().Events

	host := "127.0.0.1"
	port := 0
	if eventsCfg != nil {
		if eventsCfg.Host != "" {
			host = eventsCfg.Host
		}
		port = eventsCfg.Port
	}

	brokerCtx, cancel := context.WithCancel(ctx)

	broker := &WebSocketBroker{
		ctx:     brokerCtx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
		addr:    fmt.Sprintf("%s:%d", host, port),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local desktop backend: the frontend connects from a file or
			// app origin, so origin checks only get in the way.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	broker.state.Store(StateStopped)

	return broker, nil
}

func (b *WebSocketBroker) Start() error {
	if !b.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		b.state.Store(StateStopped)
		return types.WrapError(err, "failed to listen for event subscribers")
	}
	b.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleSubscribe)

	b.server = &http.Server{Handler: mux}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			b.logger.Error("Event broker listener failed", zap.Error(err))
		}
	}()

	b.state.Store(StateRunning)
	b.logger.Info("Event broker started", zap.String("addr", listener.Addr().String()))
	return nil
}

func (b *WebSocketBroker) Stop() error {
	if !b.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		b.state.Store(StateStopped)
		b.cancel()
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.server.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn("Event broker shutdown timeout", zap.Error(err))
	}

	b.mu.Lock()
	for c := range b.clients {
		close(c.send)
		_ = c.conn.Close()
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("Event broker stopped gracefully")
	return nil
}

func (b *WebSocketBroker) IsRunning() bool {
	return b.state.Load().(State) == StateRunning
}

// Addr returns the bound listen address, useful when the configured port is 0.
func (b *WebSocketBroker) Addr() string {
	if b.listener == nil {
		return b.addr
	}
	return b.listener.Addr().String()
}

func (b *WebSocketBroker) Publish(name string, payload interface{}) {
	if !b.IsRunning() {
		return
	}

	event := types.Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := utils.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		select {
		case c.send <- data:
			b.recordMetric(name, "delivered")
		default:
			// Subscriber can't keep up; drop instead of blocking publish.
			b.recordMetric(name, "dropped")
		}
	}
}

func (b *WebSocketBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *WebSocketBroker) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	b.logger.Debug("Event subscriber connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("subscribers", count))

	b.wg.Add(2)
	go b.writePump(c)
	go b.readPump(c)
}

func (b *WebSocketBroker) removeClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()

	_ = c.conn.Close()
}

// readPump discards inbound frames; subscribers are listen-only. It exists to
// notice disconnects and answer pings.
func (b *WebSocketBroker) readPump(c *client) {
	defer b.wg.Done()
	defer b.removeClient(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("Event subscriber read failed", zap.Error(err))
			}
			return
		}
	}
}

func (b *WebSocketBroker) writePump(c *client) {
	defer b.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-b.ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *WebSocketBroker) recordMetric(event, result string) {
	if b.metrics == nil {
		return
	}

	b.metrics.Counter("event_publishes_total", map[string]string{
		"event":  event,
		"result": result,
	}).Inc()
}
