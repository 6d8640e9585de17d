package config

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lumenview/lumenview/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type ConfigurationManager struct {
	ctx        context.Context
	cancel     context.CancelFunc
	config     atomic.Pointer[types.ServiceConfig]
	resolver   atomic.Pointer[pathResolver]
	configPath string
	loader     *Loader
	state      atomic.Value
	mu         sync.RWMutex
}

func NewConfigurationManager(ctx context.Context, configPath string) (*ConfigurationManager, error) {
	managerCtx, cancel := context.WithCancel(ctx)

	cm := &ConfigurationManager{
		ctx:        managerCtx,
		cancel:     cancel,
		configPath: configPath,
		loader:     NewLoader(),
	}

	cm.state.Store(StateStopped)

	if err := cm.Load(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

func (cm *ConfigurationManager) Start() error {
	if !cm.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (cm *ConfigurationManager) Stop() error {
	if !cm.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}

	defer cm.cancel()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.config.Store(nil)
	cm.resolver.Store(nil)

	return nil
}

func (cm *ConfigurationManager) IsRunning() bool {
	return cm.state.Load().(State) == StateRunning
}

func (cm *ConfigurationManager) Load() error {
	config, err := cm.loader.LoadFromFile(cm.configPath)
	if err != nil {
		return types.WrapError(err, "failed to load configuration from file")
	}

	resolver := newPathResolver(config)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.config.Store(config)
	cm.resolver.Store(resolver)

	return nil
}

func (cm *ConfigurationManager) GetConfig() *types.ServiceConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if config := cm.config.Load(); config != nil {
		return config
	}
	return nil
}

func (cm *ConfigurationManager) GetValue(path string, defaultValue interface{}) interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	resolver := cm.resolver.Load()
	if resolver == nil {
		return defaultValue
	}
	value, ok := resolver.Lookup(path)
	if !ok {
		return defaultValue
	}
	return value
}

func (cm *ConfigurationManager) GetAs(path string, target interface{}) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	resolver := cm.resolver.Load()
	if resolver == nil {
		return types.ErrConfigLoadFailed
	}
	return resolver.Decode(path, target)
}
