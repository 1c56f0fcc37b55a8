package session

import (
	"context"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
	"github.com/RyanBlaney/stream-session/pkg/stream/icecast"
)

// icecastDialer adapts the ICY negotiator to the Dialer interface
type icecastDialer struct {
	negotiator *icecast.Negotiator
}

// NewIcecastDialer returns a Dialer backed by the ICY negotiator. A nil
// config selects defaults.
func NewIcecastDialer(config *icecast.Config) Dialer {
	return &icecastDialer{
		negotiator: icecast.NewNegotiatorWithConfig(config),
	}
}

func (d *icecastDialer) Connect(ctx context.Context, endpoint *common.StreamEndpoint) (*Negotiated, error) {
	conn, err := d.negotiator.Connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &Negotiated{
		Reader:       conn,
		Metadata:     conn.Metadata,
		MetaInterval: conn.MetaInterval,
	}, nil
}
