package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerID        string     `json:"player_id"`
	ResumeToken     string     `json:"resume_token"`
	HallParams      HallParams `json:"hall_params"`
}

type HallParams struct {
	TickRateHz         int    `json:"tick_rate_hz"`
	TradeSlotsPerSide  int    `json:"trade_slots_per_side"`
	TradeCooldownTicks uint64 `json:"trade_cooldown_ticks"`
	RequestTTLTicks    uint64 `json:"request_ttl_ticks"`
}

// OBS (server -> client), one per tick per connected player.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	PlayerID        string `json:"player_id"`

	Self      SelfObs     `json:"self"`
	Inventory []ItemStack `json:"inventory"`

	PendingTrade *PendingTradeObs `json:"pending_trade,omitempty"`
	Trade        *TradeObs        `json:"trade,omitempty"`
	Ground       []GroundObs      `json:"ground,omitempty"`

	Events []Event `json:"events"`
}

type SelfObs struct {
	Pos  [3]int  `json:"pos"`
	Home *[3]int `json:"home,omitempty"`
}

// PendingTradeObs is an inbound, not-yet-accepted trade request.
type PendingTradeObs struct {
	From        string `json:"from"`
	FromName    string `json:"from_name"`
	ExpiresTick uint64 `json:"expires_tick"`
}

// TradeObs is the read-only projection of the player's active session.
// Slots list only occupied positions; ready states are
// "NOT_READY" | "READY" | "CONFIRMED".
type TradeObs struct {
	SessionID  string      `json:"session_id"`
	With       string      `json:"with"`
	WithName   string      `json:"with_name"`
	State      string      `json:"state"`
	MySlots    []SlotStack `json:"my_slots"`
	TheirSlots []SlotStack `json:"their_slots"`
	MyReady    string      `json:"my_ready"`
	TheirReady string      `json:"their_ready"`
}

type GroundObs struct {
	ID    string `json:"id"`
	Pos   [3]int `json:"pos"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type SlotStack struct {
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	PlayerID        string       `json:"player_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	To   string `json:"to,omitempty"`
	Text string `json:"text,omitempty"`

	Slot  int    `json:"slot,omitempty"`
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}
