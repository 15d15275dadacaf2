package trade

import (
	"errors"

	"tradehall.gg/internal/protocol"
)

// RejectError is a synchronous rejection: the acting party's operation was
// refused and no engine state changed. Code is one of the protocol E_*
// constants so callers can surface it on the wire unchanged.
type RejectError struct {
	Code string
	Msg  string
}

func (e *RejectError) Error() string { return e.Code + ": " + e.Msg }

func reject(code, msg string) *RejectError { return &RejectError{Code: code, Msg: msg} }

var (
	ErrInvalidTarget    = reject(protocol.ErrInvalidTarget, "cannot trade with yourself")
	ErrAlreadyInSession = reject(protocol.ErrAlreadyInSession, "a party is already trading")
	ErrNoPendingRequest = reject(protocol.ErrNoPendingRequest, "no pending trade request")
	ErrPartyUnavailable = reject(protocol.ErrPartyUnavailable, "requester is no longer online")
	ErrNotInSession     = reject(protocol.ErrNotInSession, "no active trade session")
	ErrForeignSlot      = reject(protocol.ErrForeignSlot, "slot belongs to the other party")
	ErrUntradeable      = reject(protocol.ErrUntradeable, "item cannot be traded")
	ErrCooldown         = reject(protocol.ErrCooldown, "wait after changing items before readying up")
	ErrWrongParty       = reject(protocol.ErrWrongParty, "party is not in this session")
	ErrEmptySlot        = reject(protocol.ErrBadRequest, "slot is empty")
	ErrBadSlot          = reject(protocol.ErrBadRequest, "slot index out of range")
	ErrBadItem          = reject(protocol.ErrBadRequest, "empty item")
)

// CodeOf extracts the wire code from an engine error, E_INTERNAL otherwise.
func CodeOf(err error) string {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Code
	}
	return protocol.ErrInternal
}
