package hall

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tradehall.gg/internal/protocol"
	"tradehall.gg/internal/trade"
	"tradehall.gg/internal/tuning"
)

type Vec3i struct{ X, Y, Z int }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func Manhattan(a, b Vec3i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Config struct {
	ID   string
	Tune tuning.Tuning

	// InitialHomes seeds saved home positions, keyed by player name.
	InitialHomes map[string][3]int
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	PlayerID string
	Act      protocol.ActMsg
}

// HomeStore receives write-through home updates; reads happen once at
// startup via Config.InitialHomes.
type HomeStore interface {
	Set(player string, pos [3]int) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // e.g. "TRADE_SETTLED"
	Session string `json:"session,omitempty"`
	With    string `json:"with,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type clientState struct {
	Out chan []byte
}

// Hall is a single-threaded authoritative player hub.
// All state must be accessed only from the hall loop goroutine.
type Hall struct {
	cfg    Config
	engine *trade.Engine

	tick atomic.Uint64

	players map[string]*Player
	byName  map[string]string // player name -> id
	clients map[string]*clientState

	// Pending teleport requests, keyed by target id. Newest wins.
	tpRequests map[string]string

	ground   map[string]*GroundItem
	groundAt map[Vec3i][]string

	// Saved home positions by player name, write-through to homeStore.
	homes map[string][3]int

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan string
	stop   chan struct{}

	nextPlayerNum atomic.Uint64
	nextItemNum   atomic.Uint64

	// Derived tick windows.
	cooldownTicks  uint64
	requestTTL     uint64
	groundTTLTicks uint64

	untradeable map[string]bool

	// Optional sinks (may be nil).
	homeStore   HomeStore
	auditLogger AuditLogger
}

func New(cfg Config) *Hall {
	tune := cfg.Tune
	if tune.TickRateHz <= 0 {
		tune = tuning.Defaults()
	}
	cfg.Tune = tune

	h := &Hall{
		cfg:        cfg,
		players:    map[string]*Player{},
		byName:     map[string]string{},
		clients:    map[string]*clientState{},
		tpRequests: map[string]string{},
		ground:     map[string]*GroundItem{},
		groundAt:   map[Vec3i][]string{},
		homes:      map[string][3]int{},
		inbox:      make(chan ActionEnvelope, 1024),
		join:       make(chan JoinRequest, 64),
		attach:     make(chan AttachRequest, 64),
		leave:      make(chan string, 64),
		stop:       make(chan struct{}),

		cooldownTicks:  tune.Ticks(tune.Trade.CooldownSeconds),
		requestTTL:     tune.Ticks(tune.Trade.RequestTTLSeconds),
		groundTTLTicks: tune.Ticks(float64(tune.GroundItemTTLSeconds)),
		untradeable:    map[string]bool{},
	}
	for _, id := range tune.Trade.Untradeable {
		h.untradeable[id] = true
	}
	for name, pos := range cfg.InitialHomes {
		h.homes[name] = pos
	}

	h.engine = trade.NewEngine(trade.Config{
		SlotsPerSide:    tune.Trade.SlotsPerSide,
		CooldownTicks:   h.cooldownTicks,
		RequestTTLTicks: h.requestTTL,
		Tradeable:       func(it trade.Item) bool { return !h.untradeable[it.ID] },
	}, h, h, h, h)
	return h
}

func (h *Hall) SetHomeStore(s HomeStore)     { h.homeStore = s }
func (h *Hall) SetAuditLogger(l AuditLogger) { h.auditLogger = l }

func (h *Hall) Inbox() chan<- ActionEnvelope { return h.inbox }
func (h *Hall) Join() chan<- JoinRequest     { return h.join }
func (h *Hall) Attach() chan<- AttachRequest { return h.attach }
func (h *Hall) Leave() chan<- string         { return h.leave }

func (h *Hall) CurrentTick() uint64 { return h.tick.Load() }
func (h *Hall) TickRateHz() int     { return h.cfg.Tune.TickRateHz }

func (h *Hall) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(h.cfg.Tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stop:
			return nil
		case req := <-h.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-h.attach:
			h.handleAttach(req)
		case id := <-h.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-h.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			h.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (h *Hall) Stop() { close(h.stop) }

func (h *Hall) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := h.tick.Load()

	// Leaves and joins apply at the tick boundary.
	for _, id := range leaves {
		h.handleLeave(id)
	}
	for _, req := range joins {
		resp := h.joinPlayer(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	// Request expiries fire before actions so an accept of an expired
	// invitation sees it gone.
	h.engine.Tick(nowTick)

	// Apply actions in inbox order.
	for _, env := range actions {
		p := h.players[env.PlayerID]
		if p == nil {
			continue
		}
		env.Act.PlayerID = env.PlayerID // trust session identity
		h.applyAct(p, env.Act, nowTick)
	}

	h.cleanupExpiredGround(nowTick)
	h.autoPickup(nowTick)

	// Build + send OBS for each connected player.
	for id, p := range h.players {
		cl := h.clients[id]
		if cl == nil {
			continue
		}
		obs := h.buildObs(p, nowTick)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	h.tick.Add(1)
}

// StepOnce advances the hall by a single tick using the same ordering
// semantics as the server loop. Intended for tests.
func (h *Hall) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	tick := h.tick.Load()
	h.step(joins, leaves, actions)
	return tick
}

func (h *Hall) joinPlayer(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "player"
	}

	// Reconnecting under the same name reattaches to the same player so
	// saved state (inventory, home) survives a dropped connection.
	var p *Player
	if id, ok := h.byName[name]; ok {
		p = h.players[id]
	}
	if p == nil {
		idNum := h.nextPlayerNum.Add(1)
		p = &Player{
			ID:   fmt.Sprintf("P%d", idNum),
			Name: name,
			Pos:  Vec3i{X: int(idNum) * 2, Y: 64, Z: -int(idNum) * 2},
		}
		p.initDefaults()
		for _, s := range h.cfg.Tune.StarterItems {
			p.Inventory[s.Item] += s.Count
		}
		if pos, ok := h.homes[name]; ok {
			p.Home = &Vec3i{X: pos[0], Y: pos[1], Z: pos[2]}
		}
		h.players[p.ID] = p
		h.byName[name] = p.ID
	}

	if out != nil {
		h.clients[p.ID] = &clientState{Out: out}
	}
	p.ResumeToken = "resume_" + uuid.NewString()

	return JoinResponse{Welcome: h.welcomeFor(p)}
}

func (h *Hall) welcomeFor(p *Player) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		ResumeToken:     p.ResumeToken,
		HallParams: protocol.HallParams{
			TickRateHz:         h.cfg.Tune.TickRateHz,
			TradeSlotsPerSide:  h.cfg.Tune.Trade.SlotsPerSide,
			TradeCooldownTicks: h.cooldownTicks,
			RequestTTLTicks:    h.requestTTL,
		},
	}
}

func (h *Hall) handleAttach(req AttachRequest) {
	if req.ResumeToken == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}
	var p *Player
	for _, pp := range h.players {
		if pp.ResumeToken == req.ResumeToken {
			p = pp
			break
		}
	}
	if p == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	h.clients[p.ID] = &clientState{Out: req.Out}
	// Rotate token on successful resume.
	p.ResumeToken = "resume_" + uuid.NewString()

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: h.welcomeFor(p)}
	}
}

// handleLeave tears down the connection and cancels any active session.
// Escrowed items flow back through the normal return path, so a dropped
// connection never destroys them.
func (h *Hall) handleLeave(playerID string) {
	if _, ok := h.clients[playerID]; !ok {
		return
	}
	delete(h.clients, playerID)
	h.engine.Cancel(playerID, trade.ReasonDisconnect)
	h.engine.DeclineRequest(playerID)
	delete(h.tpRequests, playerID)
}

func (h *Hall) buildObs(p *Player, nowTick uint64) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PlayerID:        p.ID,
		Self:            protocol.SelfObs{Pos: p.Pos.ToArray()},
		Inventory:       p.InventoryList(),
		Events:          p.TakeEvents(),
	}
	if obs.Events == nil {
		obs.Events = []protocol.Event{}
	}
	if p.Home != nil {
		home := p.Home.ToArray()
		obs.Self.Home = &home
	}

	if req, ok := h.engine.RequestFor(p.ID); ok {
		obs.PendingTrade = &protocol.PendingTradeObs{
			From:        req.Requester,
			FromName:    h.Name(req.Requester),
			ExpiresTick: req.ExpiresTick,
		}
	}

	if v, ok := h.engine.SessionOf(p.ID); ok {
		obs.Trade = &protocol.TradeObs{
			SessionID:  v.ID,
			With:       v.With,
			WithName:   v.WithName,
			State:      v.State.String(),
			MySlots:    slotStacks(v.Mine),
			TheirSlots: slotStacks(v.Theirs),
			MyReady:    v.MyReady.String(),
			TheirReady: v.TheirReady.String(),
		}
	}

	for _, g := range h.ground {
		if Manhattan(g.Pos, p.Pos) <= 16 {
			obs.Ground = append(obs.Ground, protocol.GroundObs{
				ID:    g.EntityID,
				Pos:   g.Pos.ToArray(),
				Item:  g.Item,
				Count: g.Count,
			})
		}
	}
	return obs
}

func slotStacks(slots []trade.Item) []protocol.SlotStack {
	out := make([]protocol.SlotStack, 0, 4)
	for i, it := range slots {
		if it.IsZero() {
			continue
		}
		out = append(out, protocol.SlotStack{Slot: i, Item: it.ID, Count: it.Count})
	}
	return out
}

func (h *Hall) audit(e AuditEntry) {
	if h.auditLogger != nil {
		_ = h.auditLogger.WriteAudit(e)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
