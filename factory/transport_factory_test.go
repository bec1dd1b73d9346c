package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/kpxc/interfaces"
	kpxctest "github.com/opd-ai/kpxc/testing"
	"github.com/opd-ai/kpxc/transport"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvSocketPath, EnvInstallation, EnvResponseTimeout, EnvReconnectDelay,
		EnvMalformedThreshold, EnvUseSimulation, EnvVerifyPeer,
	} {
		t.Setenv(name, "")
	}
}

func TestNewTransportFactoryDefaults(t *testing.T) {
	clearEnv(t)
	f := NewTransportFactory()

	cfg := f.GetCurrentConfig()
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 5000, cfg.ResponseTimeout)
	assert.Equal(t, 15000, cfg.ReconnectDelay)
	assert.Equal(t, 4, cfg.MalformedThreshold)
	assert.True(t, cfg.VerifyPeerCredentials)
	assert.False(t, f.IsUsingSimulation())
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSocketPath, "/run/custom.sock")
	t.Setenv(EnvInstallation, "flatpak")
	t.Setenv(EnvResponseTimeout, "250")
	t.Setenv(EnvReconnectDelay, "1000")
	t.Setenv(EnvMalformedThreshold, "7")
	t.Setenv(EnvUseSimulation, "true")
	t.Setenv(EnvVerifyPeer, "false")

	cfg := NewTransportFactory().GetCurrentConfig()
	assert.Equal(t, "/run/custom.sock", cfg.SocketPath)
	assert.Equal(t, interfaces.InstallationFlatpak, cfg.Installation)
	assert.Equal(t, 250, cfg.ResponseTimeout)
	assert.Equal(t, 1000, cfg.ReconnectDelay)
	assert.Equal(t, 7, cfg.MalformedThreshold)
	assert.True(t, cfg.UseSimulation)
	assert.False(t, cfg.VerifyPeerCredentials)
}

func TestInvalidEnvironmentKeepsDefaults(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"timeout not a number", EnvResponseTimeout, "soon"},
		{"timeout too small", EnvResponseTimeout, "5"},
		{"timeout too large", EnvResponseTimeout, "600001"},
		{"delay too small", EnvReconnectDelay, "1"},
		{"threshold zero", EnvMalformedThreshold, "0"},
		{"threshold too large", EnvMalformedThreshold, "101"},
		{"bad bool", EnvUseSimulation, "maybe"},
		{"bad installation", EnvInstallation, "homebrew"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			assert.Equal(t, DefaultConfig(), NewTransportFactory().GetCurrentConfig())
		})
	}
}

func TestCreateTransportSimulation(t *testing.T) {
	clearEnv(t)
	f := NewTransportFactory()
	f.SwitchToSimulation()
	assert.True(t, f.IsUsingSimulation())

	first, err := f.CreateTransport()
	require.NoError(t, err)
	second, err := f.CreateTransport()
	require.NoError(t, err)

	peer, ok := first.(*kpxctest.SimulatedPeer)
	require.True(t, ok)
	assert.Same(t, peer, second)
	assert.Same(t, peer, f.Simulation())
}

func TestCreateTransportSocket(t *testing.T) {
	clearEnv(t)
	f := NewTransportFactory()
	cfg := f.GetCurrentConfig()
	cfg.SocketPath = "custom-socket"
	require.NoError(t, f.UpdateConfig(cfg))
	f.SwitchToReal()

	tr, err := f.CreateTransport()
	require.NoError(t, err)
	sock, ok := tr.(*transport.Socket)
	require.True(t, ok)
	assert.Equal(t, "custom-socket", sock.Name())
	assert.False(t, sock.IsOpen())
}

func TestCreateTransportRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	f := NewTransportFactory()

	_, err := f.CreateTransportWithConfig(&interfaces.ConnectionConfig{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidTimeout)
}

func TestUpdateConfigValidates(t *testing.T) {
	clearEnv(t)
	f := NewTransportFactory()

	bad := f.GetCurrentConfig()
	bad.MalformedThreshold = 0
	assert.ErrorIs(t, f.UpdateConfig(bad), interfaces.ErrInvalidThreshold)
	assert.Equal(t, 4, f.GetCurrentConfig().MalformedThreshold)
}

func TestCreateSimulationForTesting(t *testing.T) {
	f := NewTransportFactory()
	db := kpxctest.NewDatabase()

	peer, cfg := f.CreateSimulationForTesting(db, WithResponseTimeout(200), WithReconnectDelay(20), WithMalformedThreshold(3))
	require.NotNil(t, peer)
	assert.Same(t, db, peer.Database())
	assert.True(t, cfg.UseSimulation)
	assert.Equal(t, 200, cfg.ResponseTimeout)
	assert.Equal(t, 20, cfg.ReconnectDelay)
	assert.Equal(t, 3, cfg.MalformedThreshold)
	assert.NoError(t, cfg.Validate())

	other, _ := f.CreateSimulationForTesting(nil)
	assert.NotSame(t, peer, other)
}
