package hall

import (
	"testing"

	"tradehall.gg/internal/protocol"
	"tradehall.gg/internal/trade"
	"tradehall.gg/internal/tuning"
)

func newTestHall(mut func(*tuning.Tuning)) *Hall {
	tune := tuning.Defaults()
	tune.StarterItems = []tuning.Stack{
		{Item: "PLANK", Count: 20},
		{Item: "IRON_INGOT", Count: 10},
	}
	if mut != nil {
		mut(&tune)
	}
	return New(Config{ID: "test", Tune: tune})
}

func joinPlayer(t *testing.T, h *Hall, name string) *Player {
	t.Helper()
	out := make(chan []byte, 4)
	resp := h.joinPlayer(name, out)
	p := h.players[resp.Welcome.PlayerID]
	if p == nil {
		t.Fatalf("join %s: no player", name)
	}
	return p
}

func lastResult(t *testing.T, p *Player, ref string) (ok bool, code string) {
	t.Helper()
	for i := len(p.Events) - 1; i >= 0; i-- {
		e := p.Events[i]
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if r, _ := e["ref"].(string); r != ref {
			continue
		}
		ok, _ = e["ok"].(bool)
		code, _ = e["code"].(string)
		return ok, code
	}
	t.Fatalf("no ACTION_RESULT for ref %s", ref)
	return false, ""
}

func mustInstant(t *testing.T, h *Hall, p *Player, inst protocol.InstantReq, nowTick uint64) {
	t.Helper()
	h.applyInstant(p, inst, nowTick)
	if ok, code := lastResult(t, p, inst.ID); !ok {
		t.Fatalf("%s %s failed: %s", p.Name, inst.Type, code)
	}
}

func hasEvent(p *Player, typ string) bool {
	for _, e := range p.Events {
		if got, _ := e["type"].(string); got == typ {
			return true
		}
	}
	return false
}

func TestFullTradeOverInstants(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: "bright"}, 0)
	if !hasEvent(b, trade.NoticeRequest) {
		t.Fatalf("target never saw the invitation")
	}
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 1)

	mustInstant(t, h, a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 0, Item: "PLANK", Count: 20}, 2)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i4", Type: "TRADE_PLACE", Slot: 0, Item: "IRON_INGOT", Count: 10}, 3)
	if a.Inventory["PLANK"] != 0 {
		t.Fatalf("escrowed items still in inventory")
	}

	// 2s cooldown at 5Hz = 10 ticks from the last edit.
	h.applyInstant(a, protocol.InstantReq{ID: "i5", Type: "TRADE_READY"}, 4)
	if ok, code := lastResult(t, a, "i5"); ok || code != protocol.ErrCooldown {
		t.Fatalf("ready inside cooldown: ok=%v code=%s", ok, code)
	}
	mustInstant(t, h, a, protocol.InstantReq{ID: "i6", Type: "TRADE_READY"}, 13)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i7", Type: "TRADE_READY"}, 13)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i8", Type: "TRADE_READY"}, 13)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i9", Type: "TRADE_READY"}, 14)

	if a.Inventory["IRON_INGOT"] != 20 || b.Inventory["PLANK"] != 20 {
		t.Fatalf("swap not applied: a=%v b=%v", a.Inventory, b.Inventory)
	}
	if !hasEvent(a, trade.NoticeSettled) || !hasEvent(b, trade.NoticeSettled) {
		t.Fatalf("settle events missing")
	}
	if _, ok := h.engine.SessionOf(a.ID); ok {
		t.Fatalf("session lingered after settlement")
	}
}

func TestPlaceRequiresHoldings(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 0)

	h.applyInstant(a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 0, Item: "DIAMOND", Count: 1}, 1)
	if ok, code := lastResult(t, a, "i3"); ok || code != protocol.ErrConflict {
		t.Fatalf("place without holdings: ok=%v code=%s", ok, code)
	}
}

func TestDisconnectCancelsAndReturns(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 0)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 0, Item: "PLANK", Count: 20}, 1)

	h.handleLeave(b.ID)

	if a.Inventory["PLANK"] != 20 {
		t.Fatalf("escrow not returned on counterpart disconnect: %v", a.Inventory)
	}
	if _, ok := h.engine.SessionOf(a.ID); ok {
		t.Fatalf("session survived disconnect")
	}
	found := false
	for _, e := range a.Events {
		if typ, _ := e["type"].(string); typ == trade.NoticeCancelled {
			if reason, _ := e["reason"].(string); reason == trade.ReasonDisconnect {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("no disconnect cancel event for the remaining party")
	}

	// A second leave for the same connection changes nothing.
	h.handleLeave(b.ID)
	if a.Inventory["PLANK"] != 20 {
		t.Fatalf("double leave duplicated items")
	}
}

func TestTradeCloseCancels(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 1, Item: "IRON_INGOT", Count: 10}, 1)

	mustInstant(t, h, a, protocol.InstantReq{ID: "i4", Type: "TRADE_CLOSE"}, 2)

	if b.Inventory["IRON_INGOT"] != 10 {
		t.Fatalf("escrow not returned on window close: %v", b.Inventory)
	}
	if _, ok := h.engine.SessionOf(b.ID); ok {
		t.Fatalf("session survived window close")
	}
}

func TestSettlementOverflowLandsOnGround(t *testing.T) {
	h := newTestHall(func(tune *tuning.Tuning) {
		tune.InventoryStacks = 2
	})
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	// Both stack lines are occupied; an incoming new item kind cannot fit.
	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 0)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 0, Item: "PLANK", Count: 20}, 1)

	mustInstant(t, h, a, protocol.InstantReq{ID: "i4", Type: "TRADE_READY"}, 11)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i5", Type: "TRADE_READY"}, 11)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i6", Type: "TRADE_READY"}, 11)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i7", Type: "TRADE_READY"}, 12)

	// B already has a PLANK line, so even with both lines occupied the
	// payout merges instead of overflowing.
	if b.Inventory["PLANK"] != 40 {
		t.Fatalf("expected merge into existing PLANK line: %v", b.Inventory)
	}

	// A genuinely new kind cannot fit and spills to the ground.
	a.Inventory["RUBY"] = 3
	mustInstant(t, h, a, protocol.InstantReq{ID: "i8", Type: "TRADE_REQUEST", To: b.ID}, 20)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i9", Type: "TRADE_ACCEPT"}, 20)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i10", Type: "TRADE_PLACE", Slot: 0, Item: "RUBY", Count: 3}, 21)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i11", Type: "TRADE_READY"}, 31)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i12", Type: "TRADE_READY"}, 31)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i13", Type: "TRADE_READY"}, 31)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i14", Type: "TRADE_READY"}, 32)

	if b.Inventory["RUBY"] != 0 {
		t.Fatalf("overflow absorbed despite full inventory: %v", b.Inventory)
	}
	var ground *GroundItem
	for _, g := range h.ground {
		if g.Item == "RUBY" {
			ground = g
		}
	}
	if ground == nil || ground.Count != 3 {
		t.Fatalf("overflow not dropped at receiver: %+v", ground)
	}
	if ground.Pos != b.Pos {
		t.Fatalf("drop position %v, want receiver's %v", ground.Pos, b.Pos)
	}

	obs := h.buildObs(b, 33)
	if len(obs.Ground) == 0 {
		t.Fatalf("ground drop missing from OBS")
	}
}

func TestGroundPickupAndExpiry(t *testing.T) {
	h := newTestHall(func(tune *tuning.Tuning) {
		tune.InventoryStacks = 2
		tune.GroundItemTTLSeconds = 2 // 10 ticks
	})
	p := joinPlayer(t, h, "alice")

	h.spawnGroundItem(0, "HALL", p.Pos, "RUBY", 3, "TEST")

	// Inventory full (PLANK + IRON_INGOT): pickup blocked, stack stays.
	h.autoPickup(1)
	if p.Inventory["RUBY"] != 0 || len(h.ground) != 1 {
		t.Fatalf("pickup despite full inventory")
	}

	// Free a line and it gets hoovered up.
	delete(p.Inventory, "PLANK")
	h.autoPickup(2)
	if p.Inventory["RUBY"] != 3 || len(h.ground) != 0 {
		t.Fatalf("pickup failed: inv=%v ground=%d", p.Inventory, len(h.ground))
	}

	// Unclaimed stacks despawn at their TTL.
	h.spawnGroundItem(5, "HALL", Vec3i{X: 99, Y: 0, Z: 99}, "COAL", 1, "TEST")
	h.cleanupExpiredGround(14)
	if len(h.ground) != 1 {
		t.Fatalf("stack despawned early")
	}
	h.cleanupExpiredGround(15)
	if len(h.ground) != 0 {
		t.Fatalf("stack survived its TTL")
	}
}

func TestTeleportRequestAccept(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TP_REQUEST", To: "bright"}, 0)
	if !hasEvent(b, "TP_REQUEST") {
		t.Fatalf("target never saw the teleport request")
	}
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TP_ACCEPT"}, 1)
	if a.Pos != b.Pos {
		t.Fatalf("requester not teleported: %v vs %v", a.Pos, b.Pos)
	}

	// Consumed on accept.
	h.applyInstant(b, protocol.InstantReq{ID: "i3", Type: "TP_ACCEPT"}, 2)
	if ok, code := lastResult(t, b, "i3"); ok || code != protocol.ErrNoPendingRequest {
		t.Fatalf("second accept: ok=%v code=%s", ok, code)
	}
}

type recordingHomeStore struct {
	sets map[string][3]int
}

func (r *recordingHomeStore) Set(player string, pos [3]int) error {
	if r.sets == nil {
		r.sets = map[string][3]int{}
	}
	r.sets[player] = pos
	return nil
}

func TestSetHomeAndHome(t *testing.T) {
	h := newTestHall(nil)
	store := &recordingHomeStore{}
	h.SetHomeStore(store)
	p := joinPlayer(t, h, "alice")

	start := p.Pos
	mustInstant(t, h, p, protocol.InstantReq{ID: "i1", Type: "SET_HOME"}, 0)
	if store.sets["alice"] != start.ToArray() {
		t.Fatalf("home not written through: %v", store.sets)
	}

	p.Pos = Vec3i{X: 100, Y: 64, Z: 100}
	mustInstant(t, h, p, protocol.InstantReq{ID: "i2", Type: "HOME"}, 1)
	if p.Pos != start {
		t.Fatalf("HOME did not return to %v, at %v", start, p.Pos)
	}
}

func TestHomeSeededFromStore(t *testing.T) {
	tune := tuning.Defaults()
	h := New(Config{ID: "test", Tune: tune, InitialHomes: map[string][3]int{"alice": {7, 64, -7}}})
	p := joinPlayer(t, h, "alice")
	if p.Home == nil || *p.Home != (Vec3i{X: 7, Y: 64, Z: -7}) {
		t.Fatalf("seeded home missing: %v", p.Home)
	}
}

func TestStaleActRejected(t *testing.T) {
	h := newTestHall(nil)
	p := joinPlayer(t, h, "alice")

	h.applyAct(p, protocol.ActMsg{Tick: 0, Instants: []protocol.InstantReq{{ID: "i1", Type: "SAY", Text: "hi"}}}, 10)
	if ok, code := lastResult(t, p, "ACT"); ok || code != protocol.ErrStale {
		t.Fatalf("stale act: ok=%v code=%s", ok, code)
	}
	if hasEvent(p, "CHAT") {
		t.Fatalf("stale act still executed")
	}
}

func TestTradeRequestRateLimit(t *testing.T) {
	h := newTestHall(func(tune *tuning.Tuning) {
		tune.RateLimits.TradeRequestWindowTicks = 100
		tune.RateLimits.TradeRequestMax = 2
	})
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i2", Type: "TRADE_REQUEST", To: b.ID}, 1)
	h.applyInstant(a, protocol.InstantReq{ID: "i3", Type: "TRADE_REQUEST", To: b.ID}, 2)
	if ok, code := lastResult(t, a, "i3"); ok || code != protocol.ErrRateLimit {
		t.Fatalf("third request in window: ok=%v code=%s", ok, code)
	}
}

func TestObsShowsPendingAndSession(t *testing.T) {
	h := newTestHall(nil)
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	obs := h.buildObs(b, 1)
	if obs.PendingTrade == nil || obs.PendingTrade.From != a.ID || obs.PendingTrade.FromName != "alice" {
		t.Fatalf("pending trade missing from OBS: %+v", obs.PendingTrade)
	}

	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 1)
	mustInstant(t, h, a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 2, Item: "PLANK", Count: 5}, 2)

	obs = h.buildObs(b, 3)
	if obs.PendingTrade != nil {
		t.Fatalf("pending survived accept")
	}
	if obs.Trade == nil {
		t.Fatalf("session missing from OBS")
	}
	if obs.Trade.With != a.ID || obs.Trade.WithName != "alice" {
		t.Fatalf("counterpart wrong: %+v", obs.Trade)
	}
	if len(obs.Trade.TheirSlots) != 1 || obs.Trade.TheirSlots[0].Slot != 2 || obs.Trade.TheirSlots[0].Item != "PLANK" {
		t.Fatalf("counterpart slots wrong: %+v", obs.Trade.TheirSlots)
	}
	if obs.Trade.MyReady != "NOT_READY" {
		t.Fatalf("ready state wrong: %s", obs.Trade.MyReady)
	}
}

func TestUntradeableDenylist(t *testing.T) {
	h := newTestHall(func(tune *tuning.Tuning) {
		tune.Trade.Untradeable = []string{"PLANK"}
	})
	a := joinPlayer(t, h, "alice")
	b := joinPlayer(t, h, "bright")

	mustInstant(t, h, a, protocol.InstantReq{ID: "i1", Type: "TRADE_REQUEST", To: b.ID}, 0)
	mustInstant(t, h, b, protocol.InstantReq{ID: "i2", Type: "TRADE_ACCEPT"}, 0)

	h.applyInstant(a, protocol.InstantReq{ID: "i3", Type: "TRADE_PLACE", Slot: 0, Item: "PLANK", Count: 1}, 1)
	if ok, code := lastResult(t, a, "i3"); ok || code != protocol.ErrUntradeable {
		t.Fatalf("denylisted place: ok=%v code=%s", ok, code)
	}
}
