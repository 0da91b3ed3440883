package presence

import (
	"context"
	"encoding/json"

	"github.com/DoyleJ11/live-cursor/pkg/types"
)

const DefaultChannel = "live-cursor"

// Event names exchanged on a channel.
const (
	EventOnline      = types.EventOnline
	EventOffline     = types.EventOffline
	EventSync        = types.EventSync
	EventUpdateState = types.EventUpdateState
)

// Transport is the pub/sub service a Session joins.
type Transport interface {
	// Join announces initial in the named channel. Implementations must
	// honor ctx cancellation.
	Join(ctx context.Context, channel string, initial State) (Channel, error)
}

// Channel is a joined pub/sub scope.
//
// Deliveries begin once SubscribePeers has been called, so handlers
// registered with Subscribe before it never miss the first events. Handlers
// are invoked from a single goroutine, in transport order.
type Channel interface {
	// Broadcast publishes a full snapshot to every other member. It never
	// blocks on the network.
	Broadcast(event string, payload State) error
	Subscribe(event string, handler func(json.RawMessage)) (unsubscribe func())
	SubscribePeers(handler func([]json.RawMessage)) (unsubscribe func())
	// Leave departs the channel; peers observe an offline event.
	Leave(ctx context.Context) error
}
