package events

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

type stubConfig struct {
	cfg types.ServiceConfig
}

func (s *stubConfig) Load() error                     { return nil }
func (s *stubConfig) GetConfig() *types.ServiceConfig { return &s.cfg }
func (s *stubConfig) GetValue(string, interface{}) interface{} {
	return nil
}
func (s *stubConfig) GetAs(string, interface{}) error { return nil }

func newTestBroker(t *testing.T) *WebSocketBroker {
	t.Helper()

	config := &stubConfig{cfg: types.ServiceConfig{
		Events: &types.EventsConfig{Enabled: true, Host: "127.0.0.1", Port: 0},
	}}

	broker, err := NewWebSocketBroker(context.Background(), config, logger.NewZapWrapper(zap.NewNop()), nil)
	if err != nil {
		t.Fatalf("failed to build broker: %v", err)
	}
	if err := broker.Start(); err != nil {
		t.Fatalf("failed to start broker: %v", err)
	}
	t.Cleanup(func() {
		_ = broker.Stop()
	})

	return broker
}

func TestPublishReachesSubscriber(t *testing.T) {
	broker := newTestBroker(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+broker.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to dial broker: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for broker.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(types.EventImageLoaded, map[string]interface{}{"path": "/pictures/a.png"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	var event types.Event
	if err := utils.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Name != types.EventImageLoaded {
		t.Fatalf("unexpected event name: %s", event.Name)
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	broker := newTestBroker(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			broker.Publish(types.EventCacheEvicted, map[string]int{"evicted": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestNoopBrokerLifecycle(t *testing.T) {
	broker := NewNoopBroker()

	if err := broker.Start(); err != nil {
		t.Fatalf("noop start failed: %v", err)
	}
	if !broker.IsRunning() {
		t.Fatal("noop broker should report running")
	}

	broker.Publish(types.EventSessionSaved, nil)
	if broker.SubscriberCount() != 0 {
		t.Fatal("noop broker should have no subscribers")
	}

	if err := broker.Stop(); err != nil {
		t.Fatalf("noop stop failed: %v", err)
	}
}
