package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	TickDurationMs int `yaml:"tick_duration_ms"`

	Trade Trade `yaml:"trade"`

	InventoryStacks int      `yaml:"inventory_stacks"`
	StarterItems    []Stack  `yaml:"starter_items"`
	GroundItemTTLSeconds int `yaml:"ground_item_ttl_seconds"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type Trade struct {
	SlotsPerSide       int      `yaml:"slots_per_side"`
	CooldownSeconds    float64  `yaml:"cooldown_seconds"`
	RequestTTLSeconds  float64  `yaml:"request_ttl_seconds"`
	Untradeable        []string `yaml:"untradeable"`
}

type Stack struct {
	Item  string `yaml:"item"`
	Count int    `yaml:"count"`
}

type RateLimits struct {
	SayWindowTicks          int `yaml:"say_window_ticks"`
	SayMax                  int `yaml:"say_max"`
	TradeRequestWindowTicks int `yaml:"trade_request_window_ticks"`
	TradeRequestMax         int `yaml:"trade_request_max"`
	TradeEditWindowTicks    int `yaml:"trade_edit_window_ticks"`
	TradeEditMax            int `yaml:"trade_edit_max"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      5,
		TickDurationMs:  200,
		Trade: Trade{
			SlotsPerSide:      16,
			CooldownSeconds:   2,
			RequestTTLSeconds: 30,
			Untradeable:       []string{"BEDROCK", "SOUL_BOUND_TOKEN"},
		},
		InventoryStacks:      36,
		GroundItemTTLSeconds: 300,
		StarterItems: []Stack{
			{Item: "PLANK", Count: 16},
			{Item: "IRON_INGOT", Count: 8},
			{Item: "BREAD", Count: 4},
		},
		RateLimits: RateLimits{
			SayWindowTicks:          50,
			SayMax:                  10,
			TradeRequestWindowTicks: 100,
			TradeRequestMax:         5,
			TradeEditWindowTicks:    25,
			TradeEditMax:            40,
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Ticks converts a duration in seconds to whole ticks at this tuning's
// tick rate, rounding up so short windows never collapse to zero.
func (t Tuning) Ticks(seconds float64) uint64 {
	hz := t.TickRateHz
	if hz <= 0 {
		hz = 5
	}
	ticks := seconds * float64(hz)
	n := uint64(ticks)
	if float64(n) < ticks {
		n++
	}
	return n
}
