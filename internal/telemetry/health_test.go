package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingFunc_ReportsHealthyOnNilError(t *testing.T) {
	p := PingFunc{CheckerName: "core_db", Ping: func(ctx context.Context) error { return nil }}
	h := p.Check(context.Background())
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Equal(t, "core_db", h.Name)
}

func TestPingFunc_ReportsUnhealthyOnError(t *testing.T) {
	p := PingFunc{CheckerName: "staging_db", Ping: func(ctx context.Context) error { return errors.New("refused") }}
	h := p.Check(context.Background())
	assert.Equal(t, HealthUnhealthy, h.Status)
	assert.Equal(t, "refused", h.Message)
}

func TestCheckAll_PassesWhenEveryCheckerHealthy(t *testing.T) {
	ok := PingFunc{CheckerName: "a", Ping: func(ctx context.Context) error { return nil }}
	err := CheckAll(context.Background(), ok, ok)
	require.NoError(t, err)
}

func TestCheckAll_ReturnsFirstFailure(t *testing.T) {
	ok := PingFunc{CheckerName: "a", Ping: func(ctx context.Context) error { return nil }}
	bad := PingFunc{CheckerName: "b", Ping: func(ctx context.Context) error { return errors.New("down") }}
	err := CheckAll(context.Background(), ok, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}
