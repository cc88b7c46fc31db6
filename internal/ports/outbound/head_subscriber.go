package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// BlockHead is a minimal new-block notification.
type BlockHead struct {
	Number uint64
	Hash   common.Hash
	Time   uint64
}

// HeadSubscriber delivers new block headers, reconnecting internally on
// connection loss. The returned channel is closed when the subscriber shuts
// down.
type HeadSubscriber interface {
	Subscribe(ctx context.Context) (<-chan BlockHead, error)
	Close() error
}
