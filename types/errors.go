package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrRouteNotFound        = errors.New("route not found")
	ErrHandlerIsNil         = errors.New("handler is nil")
)

var (
	ErrCacheUnavailable  = errors.New("cache store unavailable")
	ErrCacheWriteFailed  = errors.New("cache write failed")
	ErrCacheQueryFailed  = errors.New("cache query failed")
	ErrCacheFlushFailed  = errors.New("cache flush failed")
	ErrCacheTypeUnknown  = errors.New("cache type unknown")
	ErrCacheZeroCapacity = errors.New("cache capacity must be at least 1")
	ErrCacheIsDisabled   = errors.New("metadata cache is disabled")
)

var (
	ErrLibraryPathInvalid  = errors.New("library path invalid")
	ErrLibraryNotFolder    = errors.New("library path is not a folder")
	ErrLibraryNotImage     = errors.New("file is not a supported image")
	ErrLibraryDecodeFailed = errors.New("image header decode failed")
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionStoreFailed  = errors.New("session store failed")
	ErrSessionIDEmpty      = errors.New("session id is empty")
	ErrSessionImportFailed = errors.New("session import failed")
)

var (
	ErrEventsNotRunning  = errors.New("event broker not running")
	ErrEventsIsDisabled  = errors.New("event broker is disabled")
	ErrEventsTypeUnknown = errors.New("event broker type unknown")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
)

var (
	ErrMetricsTypeUnknown    = errors.New("metrics type unknown")
	ErrMetricsIsDisabled     = errors.New("metrics manager is disabled")
	ErrMetricsAlreadyRunning = errors.New("metrics manager is already running")
	ErrMetricsNotRunning     = errors.New("metrics manager is not running")
)

var (
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrHealthCheckFailed   = errors.New("health check failed")
	ErrHealthIsNotRunning  = errors.New("health manager is not running")
	ErrServiceIsNotRunning = errors.New("service is not running")
)

func NewError(message string) error {
	return errors.New(message)
}

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
