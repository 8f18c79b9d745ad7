package ingest

import (
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
)

// HandleNodeStatus processes one status/node/<node_id> retained message.
// An "online" announcement bumps last_seen; "offline" (whether retained
// or delivered as the broker's Last-Will) does not — there is nothing
// further to record about a node that just told us it's gone.
func (h *Handlers) HandleNodeStatus(nodeID string, payload []byte, now time.Time) {
	online, ok := bus.ParseNodeStatus(payload)
	if !ok {
		h.state.RecordError(now, "malformed node status payload from "+nodeID)
		return
	}
	h.state.RecordNodeStatus(nodeID, online, now)
}
