package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Generic action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrConflict      = "E_CONFLICT"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"

	// Trade engine rejections.
	ErrAlreadyInSession = "E_ALREADY_IN_SESSION"
	ErrNoPendingRequest = "E_NO_PENDING_REQUEST"
	ErrPartyUnavailable = "E_PARTY_UNAVAILABLE"
	ErrNotInSession     = "E_NOT_IN_SESSION"
	ErrForeignSlot      = "E_FOREIGN_SLOT"
	ErrUntradeable      = "E_UNTRADEABLE"
	ErrCooldown         = "E_COOLDOWN"
	ErrWrongParty       = "E_WRONG_PARTY"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadRequest:       {},
	ErrInvalidTarget:    {},
	ErrRateLimit:        {},
	ErrConflict:         {},
	ErrStale:            {},
	ErrInternal:         {},
	ErrAlreadyInSession: {},
	ErrNoPendingRequest: {},
	ErrPartyUnavailable: {},
	ErrNotInSession:     {},
	ErrForeignSlot:      {},
	ErrUntradeable:      {},
	ErrCooldown:         {},
	ErrWrongParty:       {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
