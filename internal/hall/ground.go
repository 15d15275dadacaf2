package hall

import (
	"fmt"
	"sort"

	"tradehall.gg/internal/protocol"
)

// GroundItem is a dropped item stack lying in the hall, the landing spot
// for trade payouts that overflow a full inventory. It despawns after a
// tuning-controlled TTL.
type GroundItem struct {
	EntityID    string
	Pos         Vec3i
	Item        string
	Count       int
	CreatedTick uint64
	ExpiresTick uint64
}

func (h *Hall) newGroundItemID() string {
	n := h.nextItemNum.Add(1)
	return fmt.Sprintf("G%06d", n)
}

func (h *Hall) spawnGroundItem(nowTick uint64, actor string, pos Vec3i, item string, count int, reason string) string {
	if item == "" || count <= 0 {
		return ""
	}

	// Merge into an existing stack of the same item at the same position.
	for _, id := range h.groundAt[pos] {
		g := h.ground[id]
		if g == nil || g.Item != item {
			continue
		}
		g.Count += count
		if exp := nowTick + h.groundTTLTicks; exp > g.ExpiresTick {
			g.ExpiresTick = exp
		}
		h.audit(AuditEntry{Tick: nowTick, Actor: actor, Action: "ITEM_DROP", Item: item, Count: count, Reason: reason})
		return g.EntityID
	}

	id := h.newGroundItemID()
	h.ground[id] = &GroundItem{
		EntityID:    id,
		Pos:         pos,
		Item:        item,
		Count:       count,
		CreatedTick: nowTick,
		ExpiresTick: nowTick + h.groundTTLTicks,
	}
	h.groundAt[pos] = append(h.groundAt[pos], id)
	h.audit(AuditEntry{Tick: nowTick, Actor: actor, Action: "ITEM_DROP", Item: item, Count: count, Reason: reason})
	return id
}

func (h *Hall) removeGroundItem(id string) {
	g := h.ground[id]
	if g == nil {
		return
	}
	delete(h.ground, id)
	ids := h.groundAt[g.Pos]
	for i, gid := range ids {
		if gid == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h.groundAt, g.Pos)
	} else {
		h.groundAt[g.Pos] = ids
	}
}

func (h *Hall) cleanupExpiredGround(nowTick uint64) {
	if len(h.ground) == 0 {
		return
	}
	expired := make([]string, 0, 4)
	for id, g := range h.ground {
		if nowTick >= g.ExpiresTick {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		g := h.ground[id]
		h.removeGroundItem(id)
		h.audit(AuditEntry{Tick: nowTick, Actor: "HALL", Action: "ITEM_DESPAWN", Item: g.Item, Count: g.Count, Reason: "EXPIRE"})
	}
}

// autoPickup absorbs ground stacks lying at a player's position back into
// their inventory once space frees up.
func (h *Hall) autoPickup(nowTick uint64) {
	if len(h.ground) == 0 {
		return
	}
	for _, p := range h.players {
		ids := h.groundAt[p.Pos]
		if len(ids) == 0 {
			continue
		}
		for _, id := range append([]string(nil), ids...) {
			g := h.ground[id]
			if g == nil {
				continue
			}
			if over := p.addStack(g.Item, g.Count, h.cfg.Tune.InventoryStacks); over == 0 {
				h.removeGroundItem(id)
				p.AddEvent(protocol.Event{
					"t":     nowTick,
					"type":  "ITEM_PICKUP",
					"item":  g.Item,
					"count": g.Count,
				})
			}
		}
	}
}
