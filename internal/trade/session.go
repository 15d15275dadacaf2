package trade

// Session is one active negotiation between exactly two parties. All
// mutation goes through the engine, which serializes access; nothing here
// locks.
type Session struct {
	ID     string
	PartyA string
	PartyB string

	State SessionState

	slotsA []Item
	slotsB []Item

	readyA ReadyState
	readyB ReadyState

	// Tick of the last successful slot mutation; readiness toggles are
	// refused until the cooldown has passed (anti-scam grace period).
	lastModifiedTick uint64

	// Captured the moment both sides confirm; settlement re-reads the live
	// slots and refuses to swap on any mismatch.
	snapA []Item
	snapB []Item
}

func newSession(id, partyA, partyB string, slots int, nowTick uint64) *Session {
	return &Session{
		ID:               id,
		PartyA:           partyA,
		PartyB:           partyB,
		State:            Negotiating,
		slotsA:           make([]Item, slots),
		slotsB:           make([]Item, slots),
		lastModifiedTick: nowTick,
	}
}

func (s *Session) has(party string) bool { return party == s.PartyA || party == s.PartyB }

func (s *Session) other(party string) string {
	if party == s.PartyA {
		return s.PartyB
	}
	return s.PartyA
}

// ownSlots returns the half owned by party. The opposing half is never
// writable through the engine API.
func (s *Session) ownSlots(party string) []Item {
	if party == s.PartyA {
		return s.slotsA
	}
	return s.slotsB
}

func (s *Session) ready(party string) ReadyState {
	if party == s.PartyA {
		return s.readyA
	}
	return s.readyB
}

// checkSlot validates a slot index against the party's own half. Indexes
// at or beyond the half size address the counterpart's slots on the shared
// 2N surface and are never writable by this party.
func (s *Session) checkSlot(party string, slot int) error {
	n := len(s.ownSlots(party))
	if slot < 0 {
		return ErrBadSlot
	}
	if slot >= n {
		return ErrForeignSlot
	}
	return nil
}

func (s *Session) setReady(party string, r ReadyState) {
	if party == s.PartyA {
		s.readyA = r
	} else {
		s.readyB = r
	}
}

// place puts it into the party's own slot, returning whatever the slot
// previously held. anyReady reports whether a ready flag was set before the
// mutation, in which case both sides have been reset to NotReady.
func (s *Session) place(party string, slot int, it Item, nowTick uint64) (replaced Item, anyReady bool, err error) {
	if !s.has(party) {
		return Item{}, false, ErrWrongParty
	}
	if err := s.checkSlot(party, slot); err != nil {
		return Item{}, false, err
	}
	if it.IsZero() {
		return Item{}, false, ErrBadItem
	}
	own := s.ownSlots(party)
	replaced = own[slot]
	own[slot] = it
	anyReady = s.mutated(nowTick)
	return replaced, anyReady, nil
}

func (s *Session) withdraw(party string, slot int, nowTick uint64) (it Item, anyReady bool, err error) {
	if !s.has(party) {
		return Item{}, false, ErrWrongParty
	}
	if err := s.checkSlot(party, slot); err != nil {
		return Item{}, false, err
	}
	own := s.ownSlots(party)
	if own[slot].IsZero() {
		return Item{}, false, ErrEmptySlot
	}
	it = own[slot]
	own[slot] = Item{}
	anyReady = s.mutated(nowTick)
	return it, anyReady, nil
}

// mutated records a successful slot change. Any change while either side
// has signalled readiness resets both sides: no item may move silently
// once a party is ready.
func (s *Session) mutated(nowTick uint64) (anyReady bool) {
	s.lastModifiedTick = nowTick
	anyReady = s.readyA != NotReady || s.readyB != NotReady
	if anyReady {
		s.readyA = NotReady
		s.readyB = NotReady
	}
	return anyReady
}

// toggle advances the party's readiness cycle. Advancing transitions
// (NotReady->Ready, Ready->Confirmed) are cooldown-gated; backing out of
// Confirmed is always allowed.
func (s *Session) toggle(party string, cooldown, nowTick uint64) (ReadyState, error) {
	if !s.has(party) {
		return NotReady, ErrWrongParty
	}
	cur := s.ready(party)
	if cur != Confirmed && nowTick-s.lastModifiedTick < cooldown {
		return cur, ErrCooldown
	}
	var next ReadyState
	switch cur {
	case NotReady:
		next = Ready
	case Ready:
		next = Confirmed
	default:
		next = NotReady
	}
	s.setReady(party, next)
	return next, nil
}

func (s *Session) bothConfirmed() bool { return s.readyA == Confirmed && s.readyB == Confirmed }

// snapshot captures both halves for settlement verification.
func (s *Session) snapshot() {
	if s.snapA == nil {
		s.snapA = append([]Item(nil), s.slotsA...)
		s.snapB = append([]Item(nil), s.slotsB...)
	}
}

// verify compares the live slots element-wise against the snapshot. A
// mismatch means something wrote the slots outside the engine between
// confirmation and settlement; the swap must not happen.
func (s *Session) verify() bool {
	if s.snapA == nil || len(s.snapA) != len(s.slotsA) || len(s.snapB) != len(s.slotsB) {
		return false
	}
	for i := range s.slotsA {
		if s.slotsA[i] != s.snapA[i] {
			return false
		}
	}
	for i := range s.slotsB {
		if s.slotsB[i] != s.snapB[i] {
			return false
		}
	}
	return true
}
