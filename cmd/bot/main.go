package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"tradehall.gg/internal/protocol"
)

// A scripted trade client: with -trade_with it invites that player and
// escrows -offer; without it, it accepts the first invitation it sees and
// escrows -offer in return. Either way it readies up until settlement.
func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "player name")
		tradeWith = flag.String("trade_with", "", "player name to invite (empty: accept inbound)")
		offer     = flag.String("offer", "PLANK:4", "item to escrow, ITEM:COUNT")
	)
	flag.Parse()

	offerItem, offerCount, err := parseOffer(*offer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{
		conn:       conn,
		log:        logger,
		tradeWith:  *tradeWith,
		offerItem:  offerItem,
		offerCount: offerCount,
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.playerID = w.PlayerID
			logger.Printf("WELCOME player_id=%s tick_rate=%d slots=%d", w.PlayerID, w.HallParams.TickRateHz, w.HallParams.TradeSlotsPerSide)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			if b.handleObs(&obs) {
				logger.Printf("trade settled, done")
				return
			}
		}
	}
}

type bot struct {
	conn *websocket.Conn
	log  *log.Logger

	playerID   string
	tradeWith  string
	offerItem  string
	offerCount int

	invited bool
	placed  bool
	seq     int
}

// handleObs advances the script one step per observation; returns true
// once the trade settled.
func (b *bot) handleObs(obs *protocol.ObsMsg) bool {
	for _, e := range obs.Events {
		typ, _ := e["type"].(string)
		switch typ {
		case "TRADE_SETTLED":
			return true
		case "TRADE_CANCELLED":
			b.log.Printf("trade cancelled: %v", e["reason"])
			b.invited = false
			b.placed = false
		case "ACTION_RESULT":
			if ok, _ := e["ok"].(bool); !ok {
				b.log.Printf("rejected: code=%v msg=%v", e["code"], e["message"])
			}
		}
	}

	switch {
	case obs.Trade == nil && obs.PendingTrade != nil:
		b.send(obs, protocol.InstantReq{Type: "TRADE_ACCEPT"})
	case obs.Trade == nil && b.tradeWith != "" && !b.invited:
		b.invited = true
		b.send(obs, protocol.InstantReq{Type: "TRADE_REQUEST", To: b.tradeWith})
	case obs.Trade != nil && !b.placed:
		b.placed = true
		b.send(obs, protocol.InstantReq{Type: "TRADE_PLACE", Slot: 0, Item: b.offerItem, Count: b.offerCount})
	case obs.Trade != nil && b.placed && len(obs.Trade.TheirSlots) > 0 && obs.Trade.MyReady != "CONFIRMED":
		// Both sides have escrowed something; toggle towards Confirmed.
		// Cooldown rejections are retried on the next observation.
		b.send(obs, protocol.InstantReq{Type: "TRADE_READY"})
	}
	return false
}

func (b *bot) send(obs *protocol.ObsMsg, inst protocol.InstantReq) {
	b.seq++
	inst.ID = fmt.Sprintf("I%d", b.seq)
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		PlayerID:        b.playerID,
		Instants:        []protocol.InstantReq{inst},
	}
	_ = b.conn.WriteJSON(act)
}

func parseOffer(s string) (string, int, error) {
	item, countStr, ok := strings.Cut(s, ":")
	if !ok || item == "" {
		return "", 0, fmt.Errorf("bad -offer %q, want ITEM:COUNT", s)
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return "", 0, fmt.Errorf("bad -offer count %q", countStr)
	}
	return item, count, nil
}
