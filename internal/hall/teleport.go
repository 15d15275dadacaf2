package hall

import (
	"tradehall.gg/internal/protocol"
)

// Teleport requests mirror trade invitations: keyed by target, newest
// wins, consumed on accept. They carry no TTL.

func (h *Hall) applyTpRequest(p *Player, inst protocol.InstantReq, nowTick uint64) {
	target := h.resolveTarget(inst.To)
	if target == nil || !h.IsOnline(target.ID) {
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidTarget, "target not found"))
		return
	}
	if target.ID == p.ID {
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidTarget, "cannot teleport to yourself"))
		return
	}
	h.tpRequests[target.ID] = p.ID
	target.AddEvent(protocol.Event{
		"t":         nowTick,
		"type":      "TP_REQUEST",
		"from":      p.ID,
		"from_name": p.Name,
	})
	p.AddEvent(actionResult(nowTick, inst.ID, true, "", "request sent"))
}

func (h *Hall) applyTpAccept(p *Player, inst protocol.InstantReq, nowTick uint64) {
	requesterID, ok := h.tpRequests[p.ID]
	if !ok {
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrNoPendingRequest, "no teleport request"))
		return
	}
	delete(h.tpRequests, p.ID)
	requester := h.players[requesterID]
	if requester == nil || !h.IsOnline(requesterID) {
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrPartyUnavailable, "requester offline"))
		return
	}
	requester.Pos = p.Pos
	requester.AddEvent(protocol.Event{
		"t":    nowTick,
		"type": "TELEPORTED",
		"to":   p.ID,
		"pos":  p.Pos.ToArray(),
	})
	p.AddEvent(actionResult(nowTick, inst.ID, true, "", "teleported "+requester.Name))
}

func (h *Hall) applySetHome(p *Player, inst protocol.InstantReq, nowTick uint64) {
	pos := p.Pos
	p.Home = &pos
	h.homes[p.Name] = pos.ToArray()
	if h.homeStore != nil {
		if err := h.homeStore.Set(p.Name, pos.ToArray()); err != nil {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInternal, "home not persisted"))
			return
		}
	}
	p.AddEvent(actionResult(nowTick, inst.ID, true, "", "home set"))
}

func (h *Hall) applyHome(p *Player, inst protocol.InstantReq, nowTick uint64) {
	if p.Home == nil {
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "no home set"))
		return
	}
	p.Pos = *p.Home
	p.AddEvent(actionResult(nowTick, inst.ID, true, "", "welcome home"))
}
