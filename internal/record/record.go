// Package record renders minted ids in the wire format consumers expect:
// the id as uppercase hex, everything else as decimal strings.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

type Record struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	WorkerID  string `json:"worker_id"`
	Timestamp string `json:"timestamp"`
}

func FromID(id idgen.ID) Record {
	return Record{
		ID:        FormatID(id.Value),
		ServerID:  strconv.FormatUint(id.ServerID, 10),
		WorkerID:  strconv.FormatUint(id.WorkerID, 10),
		Timestamp: strconv.FormatInt(id.Timestamp, 10),
	}
}

// Decoded is a Record with the sequence field spelled out.
type Decoded struct {
	Record
	Sequence string `json:"sequence"`
}

func Decode(id idgen.ID) Decoded {
	return Decoded{
		Record:   FromID(id),
		Sequence: strconv.FormatUint(id.Sequence, 10),
	}
}

func FromIDs(ids []idgen.ID) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, FromID(id))
	}
	return out
}

// Text renders the flat key=value form, one field per line.
func (r Record) Text() string {
	var b strings.Builder
	b.WriteString("id=" + r.ID + "\n")
	b.WriteString("server_id=" + r.ServerID + "\n")
	b.WriteString("worker_id=" + r.WorkerID + "\n")
	b.WriteString("timestamp=" + r.Timestamp + "\n")
	return b.String()
}

func FormatID(v uint64) string {
	return fmt.Sprintf("%X", v)
}

// ParseID accepts the hex form produced by FormatID, with or without a 0x
// prefix, or a decimal value prefixed with "d:".
func ParseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if dec, ok := strings.CutPrefix(s, "d:"); ok {
		v, err := strconv.ParseUint(dec, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse decimal id %q: %w", dec, err)
		}
		return v, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex id %q: %w", s, err)
	}
	return v, nil
}
