package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhukov-alex/snowflake/internal/audit"
	"github.com/zhukov-alex/snowflake/internal/config"
	"github.com/zhukov-alex/snowflake/internal/idgen"
)

func TestNewClock(t *testing.T) {
	l := zaptest.NewLogger(t)

	c, closer, err := newClock(l, config.ClockConfig{Type: "system"})
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, idgen.SystemClock{}, c)

	_, _, err = newClock(l, config.ClockConfig{Type: "ntp"})
	assert.Error(t, err)

	_, _, err = newClock(l, config.ClockConfig{Type: "redis"})
	assert.Error(t, err)
}

func TestNewAudit_Disabled(t *testing.T) {
	serverID := uint64(1)
	gen, err := idgen.New(zaptest.NewLogger(t), idgen.Config{ServerID: &serverID})
	require.NoError(t, err)

	svc, err := newAudit(context.Background(), zaptest.NewLogger(t), audit.Config{}, gen, false)
	require.NoError(t, err)

	id, err := gen.Next()
	require.NoError(t, err)
	svc.Record(id)
	assert.NoError(t, svc.Close(context.Background()))
}

func TestNewAudit_UnsupportedOutput(t *testing.T) {
	serverID := uint64(1)
	gen, err := idgen.New(zaptest.NewLogger(t), idgen.Config{ServerID: &serverID})
	require.NoError(t, err)

	cfg := audit.Config{Enabled: true}
	cfg.Output.Type = "file"
	_, err = newAudit(context.Background(), zaptest.NewLogger(t), cfg, gen, false)
	assert.Error(t, err)
}
