package trade

// directory maps each party to its single active session. A session is
// present under both parties or under neither. register performs the
// "both parties free" check and the insertion as one step; callers hold
// the engine lock, so no concurrent accept can interleave.
type directory struct {
	byParty map[string]*Session
}

func newDirectory() *directory {
	return &directory{byParty: map[string]*Session{}}
}

func (d *directory) register(s *Session) error {
	if d.byParty[s.PartyA] != nil || d.byParty[s.PartyB] != nil {
		return ErrAlreadyInSession
	}
	d.byParty[s.PartyA] = s
	d.byParty[s.PartyB] = s
	return nil
}

func (d *directory) lookup(party string) *Session { return d.byParty[party] }

// unregister removes both mappings; a no-op when already absent so the
// terminal paths stay idempotent.
func (d *directory) unregister(s *Session) {
	if d.byParty[s.PartyA] == s {
		delete(d.byParty, s.PartyA)
	}
	if d.byParty[s.PartyB] == s {
		delete(d.byParty, s.PartyB)
	}
}
