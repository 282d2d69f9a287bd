package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/coedit-server/internal/proto"
)

// ws_smoke joins a room with two connections, sends a chat from the first and
// waits until the second receives it.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "1", "room id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sender, err := join(ctx, *addr, *room, "smoke-sender")
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	receiver, err := join(ctx, *addr, *room, "smoke-receiver")
	if err != nil {
		return err
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.Chat{Text: *text})
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}
	msg := proto.Message{Kind: proto.KindChat, Payload: payload, UserID: "smoke-sender", Username: "smoke-sender", RoomID: *room}
	if err := wsjson.Write(ctx, sender, msg); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	for {
		var in proto.Message
		if err := wsjson.Read(ctx, receiver, &in); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: type=%s user=%s payload=%s\n", in.Kind, in.Username, string(in.Payload))

		if in.Kind == proto.KindChat {
			var chat proto.Chat
			if err := json.Unmarshal(in.Payload, &chat); err != nil {
				return fmt.Errorf("unmarshal chat: %w", err)
			}
			if chat.Text != *text {
				return fmt.Errorf("unexpected chat text %q", chat.Text)
			}
			fmt.Println("OK")
			return nil
		}
	}
}

// join dials addr, sends a join and waits for the participants list.
func join(ctx context.Context, addr, room, user string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	msg := proto.Message{Kind: proto.KindJoin, UserID: user, Username: user, RoomID: room}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("send join: %w", err)
	}

	for {
		var in proto.Message
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			conn.CloseNow()
			return nil, fmt.Errorf("read: %w", err)
		}
		if in.Kind == proto.KindParticipants {
			fmt.Printf("%s joined room %s: %s\n", user, room, string(in.Payload))
			return conn, nil
		}
	}
}
