package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/kpxc/interfaces"
	"github.com/opd-ai/kpxc/testing"
	"github.com/opd-ai/kpxc/transport"
)

// Validation constants for configuration bounds checking.
const (
	// MinResponseTimeout is the minimum allowed response timeout in milliseconds.
	MinResponseTimeout = 100
	// MaxResponseTimeout is the maximum allowed response timeout in milliseconds (10 minutes).
	MaxResponseTimeout = 600000
	// MinReconnectDelay is the minimum allowed reconnect delay in milliseconds.
	MinReconnectDelay = 10
	// MaxReconnectDelay is the maximum allowed reconnect delay in milliseconds (1 hour).
	MaxReconnectDelay = 3600000
	// MinMalformedThreshold is the minimum allowed malformed frame threshold.
	MinMalformedThreshold = 1
	// MaxMalformedThreshold is the maximum allowed malformed frame threshold.
	MaxMalformedThreshold = 100
)

// Environment variables read by NewTransportFactory.
const (
	EnvSocketPath         = "KPXC_SOCKET_PATH"
	EnvInstallation       = "KPXC_INSTALLATION"
	EnvResponseTimeout    = "KPXC_RESPONSE_TIMEOUT"
	EnvReconnectDelay     = "KPXC_RECONNECT_DELAY"
	EnvMalformedThreshold = "KPXC_MALFORMED_THRESHOLD"
	EnvUseSimulation      = "KPXC_USE_SIMULATION"
	EnvVerifyPeer         = "KPXC_VERIFY_PEER"
)

// TransportFactory creates transports for the proxy engine from a
// ConnectionConfig. It is safe for concurrent use.
type TransportFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.ConnectionConfig
	simulation    *testing.SimulatedPeer
}

// TestConfigOption customizes the configuration used by
// CreateSimulationForTesting.
type TestConfigOption func(*interfaces.ConnectionConfig)

// NewTransportFactory creates a factory from the defaults and any KPXC_*
// environment overrides.
func NewTransportFactory() *TransportFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &TransportFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig returns the production defaults: a five second
// response timeout, fifteen seconds between reconnect attempts and four
// tolerated malformed frames.
func createDefaultConfig() *interfaces.ConnectionConfig {
	return &interfaces.ConnectionConfig{
		Installation:          interfaces.InstallationRepo,
		UseSimulation:         false,
		ResponseTimeout:       5000,
		ReconnectDelay:        15000,
		MalformedThreshold:    4,
		VerifyPeerCredentials: true,
	}
}

// DefaultConfig returns a copy of the built-in defaults without environment
// overrides.
func DefaultConfig() interfaces.ConnectionConfig {
	return *createDefaultConfig()
}

// applyEnvironmentOverrides updates config from KPXC_* variables. Invalid
// values are logged and ignored.
func applyEnvironmentOverrides(config *interfaces.ConnectionConfig) {
	if path := os.Getenv(EnvSocketPath); path != "" {
		config.SocketPath = path
	}
	parseInstallationSetting(config)
	parseIntSetting(EnvResponseTimeout, MinResponseTimeout, MaxResponseTimeout, &config.ResponseTimeout)
	parseIntSetting(EnvReconnectDelay, MinReconnectDelay, MaxReconnectDelay, &config.ReconnectDelay)
	parseIntSetting(EnvMalformedThreshold, MinMalformedThreshold, MaxMalformedThreshold, &config.MalformedThreshold)
	parseBoolSetting(EnvUseSimulation, &config.UseSimulation)
	parseBoolSetting(EnvVerifyPeer, &config.VerifyPeerCredentials)
}

func parseInstallationSetting(config *interfaces.ConnectionConfig) {
	value := os.Getenv(EnvInstallation)
	if value == "" {
		return
	}
	installation, err := interfaces.ParseInstallation(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseInstallationSetting",
			"env_var":     EnvInstallation,
			"value":       value,
			"error":       err.Error(),
			"using_value": config.Installation,
		}).Warn("Failed to parse KPXC_INSTALLATION environment variable, using default")
		return
	}
	config.Installation = installation
}

// parseIntSetting reads an integer variable into dst when it parses and
// lies within [min, max].
func parseIntSetting(name string, min, max int, dst *int) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     name,
			"value":       value,
			"error":       err.Error(),
			"using_value": *dst,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if n < min || n > max {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     name,
			"value":       n,
			"min":         min,
			"max":         max,
			"using_value": *dst,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*dst = n
}

func parseBoolSetting(name string, dst *bool) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoolSetting",
			"env_var":     name,
			"value":       value,
			"error":       err.Error(),
			"using_value": *dst,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	*dst = b
}

func logConfigurationInfo(config *interfaces.ConnectionConfig) {
	logrus.WithFields(logrus.Fields{
		"function":            "NewTransportFactory",
		"socket_path":         config.SocketPath,
		"installation":        config.Installation,
		"use_simulation":      config.UseSimulation,
		"response_timeout":    config.ResponseTimeout,
		"reconnect_delay":     config.ReconnectDelay,
		"malformed_threshold": config.MalformedThreshold,
		"verify_peer":         config.VerifyPeerCredentials,
	}).Info("Created transport factory with configuration")
}

// CreateTransport creates a transport for the current configuration.
func (f *TransportFactory) CreateTransport() (interfaces.ITransport, error) {
	return f.CreateTransportWithConfig(nil)
}

// CreateTransportWithConfig creates a transport for config, or for the
// factory default when config is nil. In simulation mode every call returns
// the same in-memory peer so that reconnects find the same database.
func (f *TransportFactory) CreateTransportWithConfig(config *interfaces.ConnectionConfig) (interfaces.ITransport, error) {
	if config == nil {
		current := f.GetCurrentConfig()
		config = &current
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	if config.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateTransportWithConfig",
			"type":     "simulation",
		}).Info("Creating simulated KeePassXC transport")
		return f.Simulation(), nil
	}

	path, err := transport.SocketPath(config.Installation, config.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to locate KeePassXC socket: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "CreateTransportWithConfig",
		"type":         "socket",
		"path":         path,
		"installation": config.Installation,
	}).Info("Creating KeePassXC socket transport")

	return transport.NewPlatformSocket(path, config.VerifyPeerCredentials), nil
}

// Simulation returns the factory's simulated peer, creating it on first
// use.
func (f *TransportFactory) Simulation() *testing.SimulatedPeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.simulation == nil {
		f.simulation = testing.NewSimulatedPeer(nil)
	}
	return f.simulation
}

// WithResponseTimeout sets the response timeout for the test configuration.
func WithResponseTimeout(ms int) TestConfigOption {
	return func(c *interfaces.ConnectionConfig) {
		c.ResponseTimeout = ms
	}
}

// WithReconnectDelay sets the reconnect delay for the test configuration.
func WithReconnectDelay(ms int) TestConfigOption {
	return func(c *interfaces.ConnectionConfig) {
		c.ReconnectDelay = ms
	}
}

// WithMalformedThreshold sets the malformed frame threshold for the test
// configuration.
func WithMalformedThreshold(n int) TestConfigOption {
	return func(c *interfaces.ConnectionConfig) {
		c.MalformedThreshold = n
	}
}

// CreateSimulationForTesting returns a fresh simulated peer over db and a
// configuration tuned for tests: 1000ms response timeout, 50ms reconnect
// delay and a malformed threshold of 2, before opts are applied.
func (f *TransportFactory) CreateSimulationForTesting(db *testing.Database, opts ...TestConfigOption) (*testing.SimulatedPeer, interfaces.ConnectionConfig) {
	testConfig := interfaces.ConnectionConfig{
		Installation:       interfaces.InstallationRepo,
		UseSimulation:      true,
		ResponseTimeout:    1000,
		ReconnectDelay:     50,
		MalformedThreshold: 2,
	}
	for _, opt := range opts {
		opt(&testConfig)
	}

	logrus.WithFields(logrus.Fields{
		"function":            "CreateSimulationForTesting",
		"response_timeout":    testConfig.ResponseTimeout,
		"reconnect_delay":     testConfig.ReconnectDelay,
		"malformed_threshold": testConfig.MalformedThreshold,
	}).Info("Creating simulation transport for testing")

	return testing.NewSimulatedPeer(db), testConfig
}

// SwitchToSimulation makes CreateTransport return the simulated peer.
func (f *TransportFactory) SwitchToSimulation() {
	f.setSimulation(true)
}

// SwitchToReal makes CreateTransport return the platform socket.
func (f *TransportFactory) SwitchToReal() {
	f.setSimulation(false)
}

func (f *TransportFactory) setSimulation(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "setSimulation",
		"previous": f.defaultConfig.UseSimulation,
		"current":  on,
	}).Info("Switching factory transport mode")

	f.defaultConfig.UseSimulation = on
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *TransportFactory) GetCurrentConfig() interfaces.ConnectionConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return *f.defaultConfig
}

// IsUsingSimulation reports whether the factory is in simulation mode.
func (f *TransportFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.UseSimulation
}

// UpdateConfig replaces the default configuration after validating it.
func (f *TransportFactory) UpdateConfig(config interfaces.ConnectionConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid connection config: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_timeout":    f.defaultConfig.ResponseTimeout,
		"new_timeout":    config.ResponseTimeout,
	}).Info("Updating factory configuration")

	f.defaultConfig = &config
	return nil
}
