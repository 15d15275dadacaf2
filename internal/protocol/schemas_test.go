package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tradehall.gg/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	obsSchema := compile("obs.schema.json")
	actSchema := compile("act.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"alice",
	  "capabilities":{"max_queue":8}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "player_id":"P1",
	  "resume_token":"resume_8a9f",
	  "hall_params":{
	    "tick_rate_hz":5,
	    "trade_slots_per_side":16,
	    "trade_cooldown_ticks":10,
	    "request_ttl_ticks":150
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.0",
	  "tick":42,
	  "player_id":"P1",
	  "self":{"pos":[2,64,-2],"home":[0,64,0]},
	  "inventory":[{"item":"PLANK","count":16}],
	  "pending_trade":{"from":"P2","from_name":"bright","expires_tick":192},
	  "trade":{
	    "session_id":"S1",
	    "with":"P2",
	    "with_name":"bright",
	    "state":"NEGOTIATING",
	    "my_slots":[{"slot":0,"item":"PLANK","count":4}],
	    "their_slots":[],
	    "my_ready":"READY",
	    "their_ready":"NOT_READY"
	  },
	  "ground":[{"id":"G000001","pos":[2,64,-2],"item":"RUBY","count":3}],
	  "events":[{"t":42,"type":"ACTION_RESULT","ref":"I1","ok":true}]
	}`), &obs)
	validate(obsSchema, obs)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":42,
	  "player_id":"P1",
	  "instants":[
	    {"id":"I1","type":"TRADE_REQUEST","to":"bright"},
	    {"id":"I2","type":"TRADE_PLACE","slot":0,"item":"PLANK","count":4},
	    {"id":"I3","type":"TRADE_READY"}
	  ]
	}`), &act)
	validate(actSchema, act)
}

// The Go structs must produce documents the schemas accept.
func TestSchemas_AcceptMarshalledMessages(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "act.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		PlayerID:        "P1",
		Instants: []protocol.InstantReq{
			{ID: "I1", Type: "SAY", Text: "hello"},
			{ID: "I2", Type: "TRADE_WITHDRAW", Slot: 3},
		},
	}
	b, err := json.Marshal(act)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("schema rejected marshalled ActMsg: %v", err)
	}
}
