package events

import (
	"sync/atomic"

	"github.com/lumenview/lumenview/types"
)

// NoopBroker is used when the events listener is disabled. Publishes vanish.
type NoopBroker struct {
	running int32
}

func NewNoopBroker() types.EventBroker {
	return &NoopBroker{}
}

func (n *NoopBroker) Start() error {
	if !atomic.CompareAndSwapInt32(&n.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (n *NoopBroker) Stop() error {
	if !atomic.CompareAndSwapInt32(&n.running, 1, 0) {
		return types.ErrServerNotRunning
	}
	return nil
}

func (n *NoopBroker) IsRunning() bool {
	return atomic.LoadInt32(&n.running) == 1
}

func (n *NoopBroker) Publish(string, interface{}) {}

func (n *NoopBroker) SubscriberCount() int { return 0 }
