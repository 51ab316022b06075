package server

import (
	"net"
	"sync"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

type captureRecorder struct {
	mu  sync.Mutex
	got []idgen.ID
}

func (c *captureRecorder) Record(ids ...idgen.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ids...)
}

func (c *captureRecorder) ids() []idgen.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]idgen.ID(nil), c.got...)
}

func freePort() int {
	l, _ := net.Listen("tcp", "127.0.0.1:0")
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
