package output

import "context"

type Message struct {
	ID      string
	Payload []byte
}

type Batch struct {
	Messages []Message
	Key      string
}

type Output interface {
	SendBatch(ctx context.Context, batch Batch) error
	Close(ctx context.Context) error
}
