// Package trade implements the escrow trade core: a request registry for
// one-to-one trade invitations, a session engine that drives the
// place/ready/confirm protocol to a verified atomic swap, and a directory
// mapping each party to at most one active session.
//
// The engine owns no player state. Identity, item delivery, overflow drops
// and notification are injected collaborators; the engine only moves opaque
// item values between the two escrow halves and, at settlement, across them.
package trade

// Item is an opaque stack held in an escrow slot. The engine never
// interprets it beyond structural equality; the zero value means "empty".
type Item struct {
	ID    string
	Count int
}

func (it Item) IsZero() bool { return it.ID == "" || it.Count <= 0 }

// ReadyState is the per-party readiness cycle a single toggle drives:
// NotReady -> Ready -> Confirmed -> NotReady.
type ReadyState uint8

const (
	NotReady ReadyState = iota
	Ready
	Confirmed
)

func (r ReadyState) String() string {
	switch r {
	case Ready:
		return "READY"
	case Confirmed:
		return "CONFIRMED"
	default:
		return "NOT_READY"
	}
}

type SessionState uint8

const (
	Negotiating SessionState = iota
	Settled
	Cancelled
)

func (s SessionState) String() string {
	switch s {
	case Settled:
		return "SETTLED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "NEGOTIATING"
	}
}

// Cancellation reasons, reported to both parties.
const (
	ReasonByParty        = "BY_PARTY"
	ReasonDisconnect     = "DISCONNECT"
	ReasonWindowClosed   = "WINDOW_CLOSED"
	ReasonVerifyMismatch = "VERIFY_MISMATCH"
)

// Notice types emitted through the Notifier.
const (
	NoticeRequest        = "TRADE_REQUEST"
	NoticeRequestExpired = "TRADE_REQUEST_EXPIRED"
	NoticeStarted        = "TRADE_STARTED"
	NoticeReready        = "TRADE_REREADY"
	NoticeReadyState     = "TRADE_READY_STATE"
	NoticeSettled        = "TRADE_SETTLED"
	NoticeCancelled      = "TRADE_CANCELLED"
)

// Presence answers identity questions about parties.
type Presence interface {
	IsOnline(party string) bool
	Name(party string) string
}

// Delivery places an item into a party's holdings and returns the part
// that could not be absorbed (zero when fully absorbed).
type Delivery interface {
	Deliver(party string, it Item) (overflow Item)
}

// Dropper is the overflow fallback: it places an item into the world at
// the party's current location. Best-effort; it must not fail.
type Dropper interface {
	Drop(party string, it Item)
}

// Notifier delivers engine notices to a party. Fire-and-forget.
type Notifier interface {
	Notify(party string, typ string, fields map[string]any)
}

// Config holds the engine tuning knobs. Zero fields take defaults.
type Config struct {
	SlotsPerSide    int
	CooldownTicks   uint64
	RequestTTLTicks uint64

	// Tradeable is the denylist predicate; nil admits every item.
	Tradeable func(Item) bool
}

const (
	DefaultSlotsPerSide    = 16
	DefaultCooldownTicks   = 10  // 2s at 5Hz
	DefaultRequestTTLTicks = 150 // 30s at 5Hz
)

func (c Config) withDefaults() Config {
	if c.SlotsPerSide <= 0 {
		c.SlotsPerSide = DefaultSlotsPerSide
	}
	if c.CooldownTicks == 0 {
		c.CooldownTicks = DefaultCooldownTicks
	}
	if c.RequestTTLTicks == 0 {
		c.RequestTTLTicks = DefaultRequestTTLTicks
	}
	return c
}
