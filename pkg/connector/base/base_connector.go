// Package base provides the BaseConnector that source connectors embed. It
// owns the configuration, the logger, the API client and progress
// reporting.
//
// # Usage
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{
//	        BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
//
// # Lifecycle
//
// 1. Create with NewBaseConnector
// 2. Initialize with Initialize() - validates config and builds the client
// 3. Use throughout connector operations
// 4. Close with Close() - releases the client's connections
package base

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/clients"
	"github.com/ajitpratap0/tap-returnless/pkg/config"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/core"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/logger"
)

// BaseConnector provides common functionality for all connectors
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.TapConfig
	logger        *zap.Logger

	// Resource management
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex

	client   *clients.HTTPClient
	progress *ProgressReporter
}

// NewBaseConnector creates a new base connector with the specified name, type, and version.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize validates cfg and builds the HTTP client from it.
//
// Example:
//
//	source := NewMySource()
//	if err := source.Initialize(ctx, cfg); err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize source")
//	}
//	defer source.Close(ctx)
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.TapConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := clients.NewHTTPClient(HTTPConfigFrom(cfg), bc.logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create API client")
	}

	bc.config = cfg
	bc.client = client
	bc.ctx, bc.cancel = context.WithCancel(ctx)
	bc.progress = NewProgressReporter(bc.logger)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("authenticated", cfg.AuthToken != ""))

	return nil
}

// HTTPConfigFrom maps the tap configuration onto the client configuration
func HTTPConfigFrom(cfg *config.TapConfig) *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	hc.BaseURL = cfg.BaseURL
	hc.AuthToken = cfg.AuthToken
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}
	hc.RequestTimeout = cfg.HTTP.Timeout
	hc.EnableHTTP2 = cfg.HTTP.EnableHTTP2
	hc.RateLimit = cfg.HTTP.RateLimitPerSec
	hc.RateBurst = cfg.HTTP.RateBurst
	hc.CircuitBreakerEnabled = cfg.HTTP.CircuitBreaker
	hc.FailureThreshold = cfg.HTTP.FailureThreshold
	hc.ResetTimeout = cfg.HTTP.ResetTimeout

	retry := clients.DefaultRetryPolicy()
	retry.MaxRetries = cfg.HTTP.MaxRetries
	if cfg.HTTP.RetryInitialDelay > 0 {
		retry.InitialDelay = cfg.HTTP.RetryInitialDelay
	}
	if cfg.HTTP.RetryMaxDelay > 0 {
		retry.MaxDelay = cfg.HTTP.RetryMaxDelay
	}
	hc.Retry = retry
	return hc
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// Close shuts down the connector
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	if bc.cancel != nil {
		bc.cancel()
	}

	if bc.client != nil {
		if err := bc.client.Close(); err != nil {
			bc.logger.Error("failed to close API client", zap.Error(err))
		}
		total, failed := bc.client.Stats()
		bc.logger.Debug("API client closed",
			zap.Int64("requests", total),
			zap.Int64("failed_requests", failed))
	}

	bc.closed = true
	bc.logger.Info("connector closed")

	return nil
}

// Ready returns an error unless Initialize succeeded and Close was not called
func (bc *BaseConnector) Ready() error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if bc.config == nil {
		return errors.New(errors.ErrorTypeConfig, "connector is not initialized")
	}
	return nil
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// SetLogger replaces the connector logger
func (bc *BaseConnector) SetLogger(log *zap.Logger) {
	if log != nil {
		bc.logger = log.With(zap.String("connector", bc.name))
	}
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.TapConfig {
	return bc.config
}

// GetContext returns the connector context
func (bc *BaseConnector) GetContext() context.Context {
	return bc.ctx
}

// GetClient returns the API client
func (bc *BaseConnector) GetClient() *clients.HTTPClient {
	return bc.client
}

// GetProgressReporter returns the progress reporter
func (bc *BaseConnector) GetProgressReporter() *ProgressReporter {
	return bc.progress
}
