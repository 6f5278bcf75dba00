package match

import (
	"go.uber.org/zap"

	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/pkg/wire"
)

// Broadcaster derives the public waiting-session view from the registry
// and republishes it to every connected client on any registry change.
type Broadcaster struct {
	reg *Registry
	ch  Channel
}

func NewBroadcaster(reg *Registry, ch Channel) *Broadcaster {
	b := &Broadcaster{reg: reg, ch: ch}
	reg.OnChange(b.Publish)
	return b
}

// Publish recomputes the snapshot and pushes it to all clients.
func (b *Broadcaster) Publish() {
	games := b.reg.ListWaiting()
	b.ch.BroadcastAll(wire.EventAvailableGames, wire.Lobby{Games: games})
	obslog.L().Debug("lobby_publish", zap.Int("waiting", len(games)))
}

// Snapshot returns the current waiting list without publishing, for
// explicit client requests and the ops endpoint.
func (b *Broadcaster) Snapshot() wire.Lobby {
	return wire.Lobby{Games: b.reg.ListWaiting()}
}
