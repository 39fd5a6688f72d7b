package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRun_KafkaFailureLeavesNoListener(t *testing.T) {
	v := config.Defaults()
	cfg, err := config.Decode(v)
	require.NoError(t, err)

	cfg.Server.Port = freePort(t)
	cfg.Server.MetricsPort = freePort(t)
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}

	err = run(context.Background(), cfg, v, logger.NewNop())
	require.Error(t, err)

	for _, port := range []int{cfg.Server.Port, cfg.Server.MetricsPort} {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		require.NoError(t, err, "port %d still bound", port)
		require.NoError(t, l.Close())
	}
}

func TestHighRiskUser(t *testing.T) {
	id, p95 := highRiskUser(config.DemoConfig{Enabled: true, HighRiskUserID: "high_risk_user", HighRiskP95: 500})
	assert.Equal(t, "high_risk_user", id)
	assert.Equal(t, 500.0, p95)

	id, p95 = highRiskUser(config.DemoConfig{Enabled: false, HighRiskUserID: "high_risk_user", HighRiskP95: 500})
	assert.Empty(t, id)
	assert.Zero(t, p95)
}
