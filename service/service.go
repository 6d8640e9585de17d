package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/cache"
	"github.com/lumenview/lumenview/config"
	"github.com/lumenview/lumenview/cron"
	"github.com/lumenview/lumenview/events"
	"github.com/lumenview/lumenview/health"
	"github.com/lumenview/lumenview/library"
	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/metrics"
	"github.com/lumenview/lumenview/middleware"
	"github.com/lumenview/lumenview/server"
	"github.com/lumenview/lumenview/session"
	"github.com/lumenview/lumenview/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Service owns every component of the backend and hands each one its
// dependencies by reference. There is no global accessor; what a component
// needs, it receives at construction.
type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	configPath      string
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration

	configManager types.ConfigManager
	loggerManager types.LoggerManager
	metricsMgr    types.MetricsManager
	broker        types.EventBroker
	metadataCache types.MetadataCache
	sessionStore  types.SessionStore
	libraryMgr    types.LibraryManager
	router        *server.Router
	healthMgr     types.HealthManager
	httpServer    *server.FastHTTPServer
	cronMgr       types.CronManager
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "config file does not exist")
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		configPath:      configPath,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
	}

	service.state.Store(StateStopped)

	if err := service.buildComponents(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to build components")
	}

	return service, nil
}

func (s *Service) buildComponents() error {
	configManager, err := config.NewConfigurationManager(s.ctx, s.configPath)
	if err != nil {
		return types.WrapError(err, "failed to build config manager")
	}
	s.configManager = configManager

	cfg := configManager.GetConfig()

	loggerManager, err := logger.NewManager(s.ctx, configManager)
	if err != nil {
		return types.WrapError(err, "failed to build logger")
	}
	s.loggerManager = loggerManager

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsMgr, err := metrics.NewManager(configManager, loggerManager)
		if err != nil {
			return types.WrapError(err, "failed to build metrics manager")
		}
		s.metricsMgr = metricsMgr
	}

	broker, err := events.NewManager(s.ctx, configManager, loggerManager, s.metricsMgr)
	if err != nil {
		return types.WrapError(err, "failed to build event broker")
	}
	s.broker = broker

	metadataCache, err := cache.NewManager(s.ctx, configManager, loggerManager, s.metricsMgr, broker)
	if err != nil {
		return types.WrapError(err, "failed to build metadata cache")
	}
	s.metadataCache = metadataCache

	sessionStore, err := session.NewCloverStore(s.ctx, configManager, loggerManager, broker)
	if err != nil {
		return types.WrapError(err, "failed to build session store")
	}
	s.sessionStore = sessionStore

	s.libraryMgr = library.NewManager(configManager, loggerManager, metadataCache, broker)

	s.router = server.NewRouter()

	if cfg.Health != nil && cfg.Health.Enabled {
		healthMgr, err := health.NewManager(s.ctx, configManager, loggerManager, s.router)
		if err != nil {
			return types.WrapError(err, "failed to build health manager")
		}
		s.healthMgr = healthMgr
		s.registerHealthCheckers()
	}

	var middlewareMgr *middleware.Manager
	if cfg.Middlewares != nil && cfg.Middlewares.Enabled {
		middlewareMgr = middleware.NewManager(configManager, loggerManager, s.metricsMgr)
	}

	api := server.NewAPI(loggerManager, s.libraryMgr, sessionStore, metadataCache, s.metricsMgr)
	api.RegisterRoutes(s.router)

	httpServer, err := server.NewHTTPServer(s.ctx, configManager, loggerManager, middlewareMgr, s.router)
	if err != nil {
		return types.WrapError(err, "failed to build HTTP server")
	}
	s.httpServer = httpServer

	if cfg.Cron != nil && cfg.Cron.Enabled {
		cronMgr, err := cron.NewManager(s.ctx, configManager, loggerManager, s.metricsMgr)
		if err != nil {
			return types.WrapError(err, "failed to build cron manager")
		}
		s.cronMgr = cronMgr

		if err := s.registerCronJobs(cfg.Cron); err != nil {
			return types.WrapError(err, "failed to register cron jobs")
		}
	}

	return nil
}

func (s *Service) registerHealthCheckers() {
	s.healthMgr.RegisterChecker("metadata_cache", func(ctx context.Context) types.HealthCheck {
		stats, err := s.metadataCache.Stats()
		if err != nil {
			return types.HealthCheck{
				Status:  types.StatusUnhealthy,
				Message: err.Error(),
			}
		}
		return types.HealthCheck{
			Status: types.StatusHealthy,
			Details: map[string]interface{}{
				"entries":     stats.EntryCount,
				"max_entries": stats.MaxEntries,
			},
		}
	})

	s.healthMgr.RegisterChecker("session_store", func(ctx context.Context) types.HealthCheck {
		if !s.sessionStore.IsRunning() {
			return types.HealthCheck{
				Status:  types.StatusUnhealthy,
				Message: "session store not running",
			}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	s.healthMgr.RegisterChecker("event_broker", func(ctx context.Context) types.HealthCheck {
		if !s.broker.IsRunning() {
			return types.HealthCheck{
				Status:  types.StatusUnknown,
				Message: "event broker not running",
			}
		}
		return types.HealthCheck{
			Status: types.StatusHealthy,
			Details: map[string]interface{}{
				"subscribers": s.broker.SubscriberCount(),
			},
		}
	})
}

func (s *Service) registerCronJobs(cronCfg *types.CronConfig) error {
	if cronCfg.FlushSchedule != "" {
		err := s.cronMgr.Add("cache_flush", cronCfg.FlushSchedule, func() {
			if err := s.metadataCache.Flush(); err != nil {
				s.loggerManager.Warn("Scheduled cache flush failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}

	if cronCfg.StatsSchedule != "" {
		err := s.cronMgr.Add("cache_stats", cronCfg.StatsSchedule, func() {
			stats, err := s.metadataCache.Stats()
			if err != nil {
				return
			}
			if s.metricsMgr != nil {
				s.metricsMgr.Gauge("cache_entries", nil).Set(float64(stats.EntryCount))
			}
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Start brings every component up and blocks until shutdown completes.
func (s *Service) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateStarting) {
		s.loggerManager.Warn("Service is already running")
		return types.ErrServerAlreadyRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.loggerManager.Error("Service run panic", zap.String("stack", string(buf[:n])))
				s.state.Store(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.loggerManager.Info("Starting service",
		zap.String("name", s.configManager.GetConfig().Name),
		zap.String("version", s.configManager.GetConfig().Version))

	if err := s.startComponents(); err != nil {
		s.state.Store(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.state.Store(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.loggerManager.Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.loggerManager.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.state.Store(StateStopped)

	s.loggerManager.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopping) {
		s.loggerManager.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.loggerManager.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) startComponents() error {
	if err := s.loggerManager.Start(); err != nil {
		return types.WrapError(err, "failed to start logger")
	}

	if s.metricsMgr != nil {
		if err := s.metricsMgr.Start(); err != nil {
			s.loggerManager.Error("Failed to start metrics manager", zap.Error(err))
		}
	}

	if err := s.broker.Start(); err != nil {
		s.loggerManager.Error("Failed to start event broker", zap.Error(err))
	}

	if err := s.metadataCache.Start(); err != nil {
		return types.WrapError(err, "failed to start metadata cache")
	}

	if err := s.sessionStore.Start(); err != nil {
		return types.WrapError(err, "failed to start session store")
	}

	if s.healthMgr != nil {
		if err := s.healthMgr.Start(); err != nil {
			s.loggerManager.Error("Failed to start health manager", zap.Error(err))
		}
	}

	if err := s.httpServer.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	if s.cronMgr != nil {
		if err := s.cronMgr.Start(); err != nil {
			s.loggerManager.Error("Failed to start cron manager", zap.Error(err))
		}
	}

	s.loggerManager.Info("All components started successfully")
	return nil
}

func (s *Service) stopComponents() error {
	s.loggerManager.Info("Stopping service components...")

	var errs []error

	if s.cronMgr != nil {
		if err := s.cronMgr.Stop(); err != nil {
			s.loggerManager.Error("Failed to stop cron manager", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := s.httpServer.Stop(); err != nil {
		s.loggerManager.Error("Failed to stop HTTP server", zap.Error(err))
		errs = append(errs, err)
	}

	if s.healthMgr != nil {
		if err := s.healthMgr.Stop(); err != nil {
			s.loggerManager.Error("Failed to stop health manager", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := s.sessionStore.Stop(); err != nil {
		s.loggerManager.Error("Failed to stop session store", zap.Error(err))
		errs = append(errs, err)
	}

	// The cache stop path flushes WAL contents into the primary database
	// file, so nothing committed is lost on exit.
	if stats, err := s.metadataCache.Stats(); err == nil {
		s.loggerManager.Info("Metadata cache at shutdown",
			zap.Int("entries", stats.EntryCount),
			zap.Int("max_entries", stats.MaxEntries))
	}
	if err := s.metadataCache.Stop(); err != nil {
		s.loggerManager.Error("Failed to stop metadata cache", zap.Error(err))
		errs = append(errs, err)
	}

	if err := s.broker.Stop(); err != nil {
		s.loggerManager.Error("Failed to stop event broker", zap.Error(err))
		errs = append(errs, err)
	}

	if s.metricsMgr != nil {
		if err := s.metricsMgr.Stop(); err != nil {
			s.loggerManager.Error("Failed to stop metrics manager", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := s.loggerManager.Stop(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.loggerManager.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.state.CompareAndSwap(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
		}

		signal.Stop(sigChan)
		close(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.loggerManager.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.loggerManager.Warn("Service shutdown: context deadline exceeded")
	default:
		s.loggerManager.Info("Service shutdown: context done")
	}
}
