package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/network"
)

const usage = `commands:
  create [stake] [min]     create a session and join it
  join <code|id>           join a session
  ready                    signal ready
  state                    fetch your view of the session
  kill|protect|investigate <target>
  skip                     skip your night action
  answer <item> [item...]  submit the task answer
  vote <target>            vote to eliminate
  quit`

var errQuit = errors.New("quit")

// parseCommand turns one input line into a message id and payload.
func parseCommand(line string) (uint16, any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, errors.New("empty command")
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return 0, nil, errQuit
	case "create":
		req := network.CreateSessionRequest{}
		if len(args) > 0 {
			req.Stake = args[0]
		}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return 0, nil, fmt.Errorf("min must be a number: %w", err)
			}
			req.MinParticipants = n
		}
		return network.MsgTypeCreateSession, req, nil
	case "join":
		if len(args) != 1 {
			return 0, nil, errors.New("usage: join <code|id>")
		}
		return network.MsgTypeJoinSession, network.JoinSessionRequest{Session: args[0]}, nil
	case "ready":
		return network.MsgTypeSignalReady, network.SessionRequest{}, nil
	case "state":
		return network.MsgTypeGetState, network.SessionRequest{}, nil
	case "kill", "protect", "investigate":
		if len(args) != 1 {
			return 0, nil, fmt.Errorf("usage: %s <target>", cmd)
		}
		action := models.NightAction{Type: models.ActionType(cmd), Target: args[0]}
		return network.MsgTypeNightAction, network.NightActionRequest{Action: action}, nil
	case "skip":
		action := models.NightAction{Type: models.ActionSkip}
		return network.MsgTypeNightAction, network.NightActionRequest{Action: action}, nil
	case "answer":
		if len(args) == 0 {
			return 0, nil, errors.New("usage: answer <item> [item...]")
		}
		return network.MsgTypeTaskAnswer, network.TaskAnswerRequest{Answer: args}, nil
	case "vote":
		if len(args) != 1 {
			return 0, nil, errors.New("usage: vote <target>")
		}
		return network.MsgTypeVote, network.VoteRequest{Target: args[0]}, nil
	default:
		return 0, nil, fmt.Errorf("unknown command %q", cmd)
	}
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func describe(packet *network.Packet) string {
	switch packet.MsgID {
	case network.MsgTypeStateSnapshot:
		var snap models.Snapshot
		if err := json.Unmarshal(packet.Data, &snap); err == nil {
			line := fmt.Sprintf("[%s] %s day %d, %d left, participants %v", snap.RoomCode, snap.Phase, snap.Day, snap.TimeLeft, snap.Participants)
			if snap.You != nil && snap.You.Role != "" {
				line += fmt.Sprintf(", you are %s", snap.You.Role)
			}
			if snap.Task != nil {
				line += fmt.Sprintf(", task: %s %v", snap.Task.Prompt, snap.Task.Presentation)
			}
			if snap.WinningFaction != "" {
				line += fmt.Sprintf(", %s wins", snap.WinningFaction)
			}
			return line
		}
	case network.MsgTypeError:
		var e network.ErrorMessage
		if err := json.Unmarshal(packet.Data, &e); err == nil {
			return fmt.Sprintf("error on %d: %s (%s)", e.MsgID, e.Message, e.Code)
		}
	case network.MsgTypeAck:
		var ack network.Ack
		if err := json.Unmarshal(packet.Data, &ack); err == nil {
			if ack.RoomCode != "" {
				return fmt.Sprintf("ok %d: session %s, code %s", ack.MsgID, ack.SessionID, ack.RoomCode)
			}
			return fmt.Sprintf("ok %d", ack.MsgID)
		}
	}
	return fmt.Sprintf("RECV (ID: %d): %s", packet.MsgID, packet.Data)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	id := flag.String("id", "", "participant id")
	flag.Parse()
	if *id == "" {
		log.Fatal("-id is required")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			if packet.MsgID == network.MsgTypeHeartbeat {
				continue
			}
			log.Println(describe(packet))
		}
	}()

	// Heartbeat loop
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.WriteMessage(websocket.BinaryMessage, mustPacket(network.MsgTypeHeartbeat)); err != nil {
					return
				}
			}
		}
	}()

	if err := send(c, network.MsgTypeHello, network.HelloRequest{ParticipantID: *id}); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}
	log.Println(usage)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				closeConn(c, done)
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			msgID, payload, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				closeConn(c, done)
				return
			}
			if err != nil {
				log.Println(err)
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}

func mustPacket(msgID uint16) []byte {
	packet, _ := network.EncodePacket(msgID, nil)
	return packet
}

func closeConn(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
