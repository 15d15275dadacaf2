package trade

// SessionView is the read-only projection a display surface renders from.
// Slot contents are copies; mutating a view never touches the session.
type SessionView struct {
	ID       string
	Party    string
	With     string
	WithName string

	State SessionState

	Mine   []Item
	Theirs []Item

	MyReady    ReadyState
	TheirReady ReadyState
}

func makeView(s *Session, party string, presence Presence) SessionView {
	other := s.other(party)
	return SessionView{
		ID:         s.ID,
		Party:      party,
		With:       other,
		WithName:   presence.Name(other),
		State:      s.State,
		Mine:       append([]Item(nil), s.ownSlots(party)...),
		Theirs:     append([]Item(nil), s.ownSlots(other)...),
		MyReady:    s.ready(party),
		TheirReady: s.ready(other),
	}
}
