package trade

import (
	"fmt"
	"sync"
)

// Engine is the facade over the request registry, the session directory
// and the per-session state machines. One mutex serializes every mutating
// operation; the check-then-register step of accept therefore cannot race
// a concurrent accept targeting the same party.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	presence Presence
	delivery Delivery
	dropper  Dropper
	notify   Notifier

	requests *registry
	sessions *directory

	nextRequestNum uint64
	nextSessionNum uint64
}

func NewEngine(cfg Config, presence Presence, delivery Delivery, dropper Dropper, notify Notifier) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		presence: presence,
		delivery: delivery,
		dropper:  dropper,
		notify:   notify,
		requests: newRegistry(),
		sessions: newDirectory(),
	}
}

// Tick fires due request expiries. The expiry for a request is scheduled
// once at creation; a request that was accepted, declined or superseded in
// the meantime makes the callback a no-op.
func (e *Engine) Tick(nowTick uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, req := range e.requests.due(nowTick) {
		e.notify.Notify(req.Requester, NoticeRequestExpired, map[string]any{
			"request_id": req.ID,
			"target":     req.Target,
		})
	}
}

// SendRequest registers an invitation from requester to target,
// overwriting any prior pending request aimed at the same target.
func (e *Engine) SendRequest(requester, target string, nowTick uint64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if requester == target {
		return "", ErrInvalidTarget
	}
	if e.sessions.lookup(requester) != nil || e.sessions.lookup(target) != nil {
		return "", ErrAlreadyInSession
	}

	e.nextRequestNum++
	req := &Request{
		ID:          fmt.Sprintf("R%d", e.nextRequestNum),
		Requester:   requester,
		Target:      target,
		CreatedTick: nowTick,
		ExpiresTick: nowTick + e.cfg.RequestTTLTicks,
	}
	e.requests.put(req)

	e.notify.Notify(target, NoticeRequest, map[string]any{
		"request_id":   req.ID,
		"from":         requester,
		"from_name":    e.presence.Name(requester),
		"expires_tick": req.ExpiresTick,
	})
	return req.ID, nil
}

// AcceptRequest consumes the pending request for target and promotes it
// into a registered session. The request is consumed exactly once; a stale
// request whose requester went offline is removed as a side effect.
func (e *Engine) AcceptRequest(target string, nowTick uint64) (requester string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := e.requests.get(target)
	if req == nil {
		return "", ErrNoPendingRequest
	}
	if !e.presence.IsOnline(req.Requester) {
		e.requests.remove(target)
		return "", ErrPartyUnavailable
	}

	e.nextSessionNum++
	s := newSession(fmt.Sprintf("S%d", e.nextSessionNum), req.Requester, target, e.cfg.SlotsPerSide, nowTick)
	if err := e.sessions.register(s); err != nil {
		return "", err
	}
	e.requests.remove(target)
	e.requests.remove(req.Requester)

	for _, p := range []string{s.PartyA, s.PartyB} {
		e.notify.Notify(p, NoticeStarted, map[string]any{
			"session_id": s.ID,
			"with":       s.other(p),
			"with_name":  e.presence.Name(s.other(p)),
		})
	}
	return req.Requester, nil
}

// DeclineRequest drops any pending request for target; not an error when
// none exists.
func (e *Engine) DeclineRequest(target string) (requester string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := e.requests.get(target)
	if req == nil {
		return "", false
	}
	e.requests.remove(target)
	return req.Requester, true
}

// RequestFor reports the pending inbound request for target, if any.
func (e *Engine) RequestFor(target string) (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := e.requests.get(target)
	if req == nil {
		return Request{}, false
	}
	return *req, true
}

// PlaceItem puts it into the party's own escrow slot, returning whatever
// the slot held before. Any success while either side was ready resets
// both sides and signals "re-ready required" to both parties.
func (e *Engine) PlaceItem(party string, slot int, it Item, nowTick uint64) (replaced Item, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessions.lookup(party)
	if s == nil {
		return Item{}, ErrNotInSession
	}
	if e.cfg.Tradeable != nil && !e.cfg.Tradeable(it) {
		return Item{}, ErrUntradeable
	}
	replaced, anyReady, err := s.place(party, slot, it, nowTick)
	if err != nil {
		return Item{}, err
	}
	e.afterMutation(s, anyReady)
	return replaced, nil
}

// WithdrawItem removes and returns the item in the party's own slot.
func (e *Engine) WithdrawItem(party string, slot int, nowTick uint64) (Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessions.lookup(party)
	if s == nil {
		return Item{}, ErrNotInSession
	}
	it, anyReady, err := s.withdraw(party, slot, nowTick)
	if err != nil {
		return Item{}, err
	}
	e.afterMutation(s, anyReady)
	return it, nil
}

func (e *Engine) afterMutation(s *Session, anyReady bool) {
	if !anyReady {
		return
	}
	for _, p := range []string{s.PartyA, s.PartyB} {
		e.notify.Notify(p, NoticeReready, map[string]any{"session_id": s.ID})
	}
}

// ToggleReady advances the acting party's readiness cycle. The moment both
// sides reach Confirmed the engine settles the session.
func (e *Engine) ToggleReady(party string, nowTick uint64) (ReadyState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessions.lookup(party)
	if s == nil {
		return NotReady, ErrNotInSession
	}
	next, err := s.toggle(party, e.cfg.CooldownTicks, nowTick)
	if err != nil {
		return s.ready(party), err
	}
	other := s.other(party)
	e.notify.Notify(other, NoticeReadyState, map[string]any{
		"session_id": s.ID,
		"party":      party,
		"state":      next.String(),
	})
	if s.bothConfirmed() {
		e.settleLocked(s)
	}
	return next, nil
}

// Cancel tears the party's session down from any non-terminal state and
// returns every placed item to its owner. Calling it without an active
// session is a no-op, which keeps explicit cancel, disconnect and
// window-close deliveries idempotent.
func (e *Engine) Cancel(party, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions.lookup(party)
	if s == nil {
		return
	}
	e.cancelLocked(s, reason)
}

func (e *Engine) cancelLocked(s *Session, reason string) {
	if s.State != Negotiating {
		return
	}
	s.State = Cancelled
	e.returnSlots(s.PartyA, s.slotsA)
	e.returnSlots(s.PartyB, s.slotsB)
	e.sessions.unregister(s)
	for _, p := range []string{s.PartyA, s.PartyB} {
		e.notify.Notify(p, NoticeCancelled, map[string]any{
			"session_id": s.ID,
			"reason":     reason,
		})
	}
}

func (e *Engine) returnSlots(party string, slots []Item) {
	for i, it := range slots {
		if it.IsZero() {
			continue
		}
		slots[i] = Item{}
		e.deliverOrDrop(party, it)
	}
}

// deliverOrDrop commits the ownership transfer: whatever the holdings
// cannot absorb overflows to the drop fallback at the receiver's location.
func (e *Engine) deliverOrDrop(party string, it Item) {
	over := e.delivery.Deliver(party, it)
	if !over.IsZero() {
		e.dropper.Drop(party, over)
	}
}

// settleLocked is the two-phase completion: snapshot, re-read and verify,
// then cross-deliver. A verification mismatch cancels with full item
// return; the swap is never partially applied.
func (e *Engine) settleLocked(s *Session) {
	if s.State != Negotiating {
		return
	}
	s.snapshot()
	if !s.verify() {
		e.cancelLocked(s, ReasonVerifyMismatch)
		return
	}
	s.State = Settled
	e.crossDeliver(s.PartyB, s.slotsA)
	e.crossDeliver(s.PartyA, s.slotsB)
	e.sessions.unregister(s)
	for _, p := range []string{s.PartyA, s.PartyB} {
		e.notify.Notify(p, NoticeSettled, map[string]any{
			"session_id": s.ID,
			"with":       s.other(p),
		})
	}
}

func (e *Engine) crossDeliver(receiver string, slots []Item) {
	for i, it := range slots {
		if it.IsZero() {
			continue
		}
		slots[i] = Item{}
		e.deliverOrDrop(receiver, it)
	}
}

// SessionOf returns the read-only projection of party's active session.
func (e *Engine) SessionOf(party string) (SessionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions.lookup(party)
	if s == nil {
		return SessionView{}, false
	}
	return makeView(s, party, e.presence), true
}
