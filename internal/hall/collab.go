package hall

import (
	"tradehall.gg/internal/protocol"
	"tradehall.gg/internal/trade"
)

// The hall is the engine's world: presence, item delivery, ground drops
// and player notification all resolve against hall state. Every method
// here runs on the hall loop goroutine.

func (h *Hall) IsOnline(party string) bool {
	_, ok := h.clients[party]
	return ok
}

func (h *Hall) Name(party string) string {
	if p := h.players[party]; p != nil {
		return p.Name
	}
	return party
}

// Deliver pushes an escrow payout into the party's inventory; whatever
// does not fit comes back for the ground-drop fallback.
func (h *Hall) Deliver(party string, it trade.Item) trade.Item {
	p := h.players[party]
	if p == nil {
		return it
	}
	if over := p.addStack(it.ID, it.Count, h.cfg.Tune.InventoryStacks); over > 0 {
		return trade.Item{ID: it.ID, Count: over}
	}
	return trade.Item{}
}

func (h *Hall) Drop(party string, it trade.Item) {
	pos := Vec3i{}
	if p := h.players[party]; p != nil {
		pos = p.Pos
	}
	h.spawnGroundItem(h.tick.Load(), party, pos, it.ID, it.Count, "TRADE_OVERFLOW")
}

func (h *Hall) Notify(party, typ string, fields map[string]any) {
	p := h.players[party]
	if p == nil {
		return
	}
	e := protocol.Event{
		"t":    h.tick.Load(),
		"type": typ,
	}
	for k, v := range fields {
		e[k] = v
	}
	p.AddEvent(e)

	switch typ {
	case trade.NoticeSettled:
		h.audit(AuditEntry{
			Tick:    h.tick.Load(),
			Actor:   party,
			Action:  typ,
			Session: str(fields["session_id"]),
			With:    str(fields["with"]),
		})
	case trade.NoticeCancelled:
		h.audit(AuditEntry{
			Tick:    h.tick.Load(),
			Actor:   party,
			Action:  typ,
			Session: str(fields["session_id"]),
			Reason:  str(fields["reason"]),
		})
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
