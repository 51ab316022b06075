package idgen_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

func TestLayout_ComposeDecompose(t *testing.T) {
	tests := []struct {
		name                    string
		seqBits, srvBits, wBits uint
		timestamp               int64
		seq, server, worker     uint64
	}{
		{"default", 12, 5, 5, idgen.DefaultEpoch + 123456, 17, 3, 30},
		{"no server bits", 12, 0, 10, idgen.DefaultEpoch + 1, 4095, 0, 1023},
		{"wide sequence", 20, 2, 2, idgen.DefaultEpoch + 99, 1 << 19, 3, 2},
		{"zero delta", 12, 5, 5, idgen.DefaultEpoch, 0, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := idgen.NewLayout(idgen.DefaultEpoch, tc.seqBits, tc.srvBits, tc.wBits)
			v := l.Compose(tc.timestamp, tc.seq, tc.server, tc.worker)

			assert.Less(t, v, uint64(1)<<63, "sign bit must stay clear")
			got := l.Decompose(v)
			assert.Equal(t, idgen.ID{
				Value:     v,
				Timestamp: tc.timestamp,
				Sequence:  tc.seq,
				ServerID:  tc.server,
				WorkerID:  tc.worker,
			}, got)
		})
	}
}

func TestLayout_ComposeMasksIdentity(t *testing.T) {
	l := idgen.NewLayout(idgen.DefaultEpoch, 12, 5, 5)

	v := l.Compose(idgen.DefaultEpoch+1, 0, 36, 33)
	got := l.Decompose(v)

	assert.Equal(t, uint64(4), got.ServerID)
	assert.Equal(t, uint64(1), got.WorkerID)
	assert.Equal(t, idgen.DefaultEpoch+1, got.Timestamp)
}

func TestLayout_Masks(t *testing.T) {
	l := idgen.NewLayout(0, 12, 5, 5)

	assert.Equal(t, uint64(4095), l.SequenceMask())
	assert.Equal(t, uint64(31), l.ServerIDMask())
	assert.Equal(t, uint64(31), l.WorkerIDMask())
	assert.Equal(t, uint(41), l.TimestampBits())
	assert.Equal(t, int64(1)<<41-1, l.MaxTimestamp())
}

func TestLayout_MaxTimestampSaturates(t *testing.T) {
	l := idgen.NewLayout(idgen.DefaultEpoch, 0, 0, 0)
	assert.Equal(t, uint(63), l.TimestampBits())
	assert.Equal(t, int64(math.MaxInt64), l.MaxTimestamp())
}
