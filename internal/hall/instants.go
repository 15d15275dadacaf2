package hall

import (
	"fmt"

	"tradehall.gg/internal/protocol"
	"tradehall.gg/internal/trade"
)

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}

func (h *Hall) applyAct(p *Player, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		p.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrStale, "act tick out of range"))
		return
	}
	for _, inst := range act.Instants {
		h.applyInstant(p, inst, nowTick)
	}
}

// resolveTarget accepts either a player id or a player name.
func (h *Hall) resolveTarget(to string) *Player {
	if p := h.players[to]; p != nil {
		return p
	}
	if id, ok := h.byName[to]; ok {
		return h.players[id]
	}
	return nil
}

// rejectResult maps an engine error onto an ACTION_RESULT event.
func rejectResult(tick uint64, ref string, err error) protocol.Event {
	code := trade.CodeOf(err)
	if code == "" {
		code = protocol.ErrInternal
	}
	return actionResult(tick, ref, false, code, err.Error())
}

func (h *Hall) applyInstant(p *Player, inst protocol.InstantReq, nowTick uint64) {
	rl := h.cfg.Tune.RateLimits
	switch inst.Type {
	case "SAY":
		if ok, cd := p.RateLimitAllow("SAY", nowTick, uint64(rl.SayWindowTicks), rl.SayMax); !ok {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, fmt.Sprintf("too many SAY, retry in %d ticks", cd)))
			return
		}
		if inst.Text == "" {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing text"))
			return
		}
		h.broadcastChat(nowTick, p, inst.Text)
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))

	case "TRADE_REQUEST":
		if ok, cd := p.RateLimitAllow("TRADE_REQUEST", nowTick, uint64(rl.TradeRequestWindowTicks), rl.TradeRequestMax); !ok {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, fmt.Sprintf("too many TRADE_REQUEST, retry in %d ticks", cd)))
			return
		}
		target := h.resolveTarget(inst.To)
		if target == nil || !h.IsOnline(target.ID) {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidTarget, "target not found"))
			return
		}
		if _, err := h.engine.SendRequest(p.ID, target.ID, nowTick); err != nil {
			p.AddEvent(rejectResult(nowTick, inst.ID, err))
			return
		}
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "request sent"))

	case "TRADE_ACCEPT":
		requester, err := h.engine.AcceptRequest(p.ID, nowTick)
		if err != nil {
			p.AddEvent(rejectResult(nowTick, inst.ID, err))
			return
		}
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "trading with "+h.Name(requester)))

	case "TRADE_DECLINE":
		// Declining with nothing pending is a quiet no-op.
		h.engine.DeclineRequest(p.ID)
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "declined"))

	case "TRADE_PLACE":
		if ok, cd := p.RateLimitAllow("TRADE_EDIT", nowTick, uint64(rl.TradeEditWindowTicks), rl.TradeEditMax); !ok {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, fmt.Sprintf("too many edits, retry in %d ticks", cd)))
			return
		}
		if inst.Item == "" || inst.Count <= 0 {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing item/count"))
			return
		}
		if p.Inventory[inst.Item] < inst.Count {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrConflict, "not holding those items"))
			return
		}
		replaced, err := h.engine.PlaceItem(p.ID, inst.Slot, trade.Item{ID: inst.Item, Count: inst.Count}, nowTick)
		if err != nil {
			p.AddEvent(rejectResult(nowTick, inst.ID, err))
			return
		}
		p.removeStack(inst.Item, inst.Count)
		if !replaced.IsZero() {
			h.giveBack(p, replaced, nowTick)
		}
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "placed"))

	case "TRADE_WITHDRAW":
		if ok, cd := p.RateLimitAllow("TRADE_EDIT", nowTick, uint64(rl.TradeEditWindowTicks), rl.TradeEditMax); !ok {
			p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, fmt.Sprintf("too many edits, retry in %d ticks", cd)))
			return
		}
		it, err := h.engine.WithdrawItem(p.ID, inst.Slot, nowTick)
		if err != nil {
			p.AddEvent(rejectResult(nowTick, inst.ID, err))
			return
		}
		h.giveBack(p, it, nowTick)
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "withdrawn"))

	case "TRADE_READY":
		state, err := h.engine.ToggleReady(p.ID, nowTick)
		if err != nil {
			p.AddEvent(rejectResult(nowTick, inst.ID, err))
			return
		}
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", state.String()))

	case "TRADE_CANCEL":
		h.engine.Cancel(p.ID, trade.ReasonByParty)
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "cancelled"))

	case "TRADE_CLOSE":
		// The client reports its trade window closed; same cancel path,
		// distinct reason for the counterpart.
		h.engine.Cancel(p.ID, trade.ReasonWindowClosed)
		p.AddEvent(actionResult(nowTick, inst.ID, true, "", "closed"))

	case "TP_REQUEST":
		h.applyTpRequest(p, inst, nowTick)

	case "TP_ACCEPT":
		h.applyTpAccept(p, inst, nowTick)

	case "SET_HOME":
		h.applySetHome(p, inst, nowTick)

	case "HOME":
		h.applyHome(p, inst, nowTick)

	default:
		p.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "unknown instant "+inst.Type))
	}
}

// giveBack returns an escrow item to the player, spilling to the ground
// at their feet if the inventory is full.
func (h *Hall) giveBack(p *Player, it trade.Item, nowTick uint64) {
	if over := p.addStack(it.ID, it.Count, h.cfg.Tune.InventoryStacks); over > 0 {
		h.spawnGroundItem(nowTick, p.ID, p.Pos, it.ID, over, "INVENTORY_FULL")
	}
}

func (h *Hall) broadcastChat(nowTick uint64, from *Player, text string) {
	for _, p := range h.players {
		if Manhattan(p.Pos, from.Pos) > 32 {
			continue
		}
		p.AddEvent(protocol.Event{
			"t":    nowTick,
			"type": "CHAT",
			"from": from.ID,
			"text": text,
		})
	}
}
