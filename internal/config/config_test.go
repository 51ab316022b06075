package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukov-alex/snowflake/internal/config"
	"github.com/zhukov-alex/snowflake/internal/idgen"
)

const baseYAML = `
metrics_addr: ":2112"
generator:
  server_id: 7
  worker_id: 3
  sequence_bits: 10
  max_clock_backward: 5ms
server:
  http:
    bind_addr: ":8080"
    read_timeout: 2s
    write_timeout: 2s
  tcp:
    bind_addr: ":9000"
    max_connections: 100
    read_timeout: 5s
audit:
  enabled: true
  buffer_size: 1024
  batch_size: 100
  flush_interval: 1s
  output:
    type: kafka
    kafka:
      brokers: ["localhost:9092"]
      topic: ids
      acks: "1"
      flush_messages: 100
      flush_frequency: 100ms
      channel_buffer_size: 256
`

func load(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	config.SetDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return config.New(v)
}

func TestNew(t *testing.T) {
	cfg, err := load(t, baseYAML)
	require.NoError(t, err)

	assert.Equal(t, ":2112", cfg.MetricsAddr)
	require.NotNil(t, cfg.Generator.ServerID)
	assert.Equal(t, uint64(7), *cfg.Generator.ServerID)
	require.NotNil(t, cfg.Generator.WorkerID)
	assert.Equal(t, uint64(3), *cfg.Generator.WorkerID)
	require.NotNil(t, cfg.Generator.SequenceBits)
	assert.Equal(t, uint(10), *cfg.Generator.SequenceBits)
	assert.Nil(t, cfg.Generator.ServerIDBits)
	assert.Nil(t, cfg.Generator.Epoch)
	assert.Equal(t, 5*time.Millisecond, cfg.Generator.MaxClockBackward)
	assert.Equal(t, "system", cfg.Generator.Clock.Type)

	assert.Equal(t, 4096, cfg.Server.MaxBatch)
	require.NotNil(t, cfg.Server.HTTP)
	assert.Equal(t, 2*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Nil(t, cfg.Server.GRPC)
	require.NotNil(t, cfg.Server.TCP)

	assert.True(t, cfg.Audit.Enabled)
	require.NotNil(t, cfg.Audit.Output.Kafka)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Audit.Output.Kafka.Brokers)

	layout := cfg.Generator.Layout()
	assert.Equal(t, idgen.DefaultEpoch, layout.Epoch)
	assert.Equal(t, uint(43), layout.TimestampBits())
}

func TestNew_MissingServerID(t *testing.T) {
	yaml := strings.Replace(baseYAML, "  server_id: 7\n", "", 1)

	_, err := load(t, yaml)
	assert.ErrorIs(t, err, idgen.ErrServerIDRequired)
}

func TestNew_BitOverflow(t *testing.T) {
	yaml := strings.Replace(baseYAML, "sequence_bits: 10", "sequence_bits: 60", 1)

	_, err := load(t, yaml)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be <= 63")
}

func TestNew_RedisClockNeedsAddr(t *testing.T) {
	yaml := strings.Replace(baseYAML, "  max_clock_backward: 5ms\n", "  max_clock_backward: 5ms\n  clock:\n    type: redis\n", 1)

	_, err := load(t, yaml)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clock.redis.addr")
}

func TestNew_AuditDisabledSkipsOutput(t *testing.T) {
	yaml := baseYAML[:strings.Index(baseYAML, "audit:")] + "audit:\n  enabled: false\n"

	cfg, err := load(t, yaml)
	require.NoError(t, err)
	assert.False(t, cfg.Audit.Enabled)
}

func TestNewDecode_OnlyNeedsLayout(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	config.SetDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader("generator:\n  sequence_bits: 10\n")))

	_, err := config.New(v)
	require.Error(t, err)

	cfg, err := config.NewDecode(v)
	require.NoError(t, err)
	assert.Equal(t, uint(10), cfg.Generator.Layout().SequenceBits)
	assert.Equal(t, idgen.DefaultEpoch, cfg.Generator.Layout().Epoch)
}

func TestNewDecode_BadLayout(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	config.SetDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader("generator:\n  sequence_bits: 60\n")))

	_, err := config.NewDecode(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be <= 63")
}

func TestNew_EnvOverridesKeyMissingFromFile(t *testing.T) {
	t.Setenv("SNOWFLAKE_GENERATOR_SERVER_ID", "11")
	t.Setenv("SNOWFLAKE_GENERATOR_STRICT_IDS", "true")
	yaml := strings.Replace(baseYAML, "  server_id: 7\n", "", 1)

	cfg, err := load(t, yaml)
	require.NoError(t, err)
	require.NotNil(t, cfg.Generator.ServerID)
	assert.Equal(t, uint64(11), *cfg.Generator.ServerID)
	assert.True(t, cfg.Generator.StrictIDs)
}
