package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"proxiverse.dev/internal/protocol"
)

// A scripted reference client: connect, report the assigned agent, then walk
// a small move/harvest/craft loop while logging snapshots.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8765/ws", "ws url")
		delay = flag.Duration("delay", 2*time.Second, "pause between commands")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	commands := []protocol.CommandMsg{
		{Action: protocol.ActionMove, Params: protocol.CommandParams{DX: 1, DY: 0}},
		{Action: protocol.ActionMove, Params: protocol.CommandParams{DX: 0, DY: 1}},
		{Action: protocol.ActionHarvest},
		{Action: protocol.ActionMove, Params: protocol.CommandParams{DX: -1, DY: 0}},
		{Action: protocol.ActionCraft},
	}

	sent := 0
	next := time.After(0)

	incoming := make(chan []byte, 16)
	go func() {
		defer close(incoming)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			incoming <- msg
		}
	}()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-incoming:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			handleMessage(logger, msg)
		case <-next:
			if sent >= len(commands) {
				next = nil
				continue
			}
			cmd := commands[sent]
			sent++
			logger.Printf("sending command %d: %s", sent, cmd.Action)
			if err := conn.WriteJSON(cmd); err != nil {
				logger.Fatalf("send: %v", err)
			}
			next = time.After(*delay)
		}
	}
}

func handleMessage(logger *log.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeConnectionEstablished:
		var m protocol.ConnectionEstablishedMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("connected, agent_id=%s", m.AgentID)
		}
	case protocol.TypeActionConfirmed:
		var m protocol.ActionConfirmedMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("action %s success=%v", m.Action, m.Success)
		}
	case protocol.TypeGameState:
		var m protocol.GameStateMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("tick %d: at (%d,%d) inventory=%v",
				m.Tick, m.AgentState.X, m.AgentState.Y, m.AgentState.Inventory)
		}
	case protocol.TypeError:
		var m protocol.ErrorMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("server error: %s", m.Message)
		}
	}
}
