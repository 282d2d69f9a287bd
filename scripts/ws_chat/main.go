package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/coedit-server/internal/client"
	"github.com/vovakirdan/coedit-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	room := flag.String("room", "1", "room id to join")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := client.New(client.Options{
		URL:       *addr,
		RoomID:    *room,
		UserID:    uuid.NewString(),
		Username:  *user,
		OnMessage: printMessage,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. /code <text> replaces the document, /who lists users. Ctrl+C to exit.")

	go writeLoop(ctx, session)

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printMessage(m proto.Message) {
	switch m.Kind {
	case proto.KindChat:
		var p proto.Chat
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			log.Printf("unmarshal chat: %v", err)
			return
		}
		fmt.Printf("[%s] %s: %s\n", m.RoomID, m.Username, p.Text)
	case proto.KindJoin:
		var p proto.Presence
		if err := json.Unmarshal(m.Payload, &p); err == nil {
			fmt.Printf("[room %s] %s joined\n", m.RoomID, p.Username)
		}
	case proto.KindLeave:
		fmt.Printf("[room %s] %s left\n", m.RoomID, m.Username)
	case proto.KindCodeChange:
		var p proto.CodeChange
		if err := json.Unmarshal(m.Payload, &p); err == nil {
			fmt.Printf("[room %s] %s edited the document (%d chars)\n", m.RoomID, m.Username, len(p.Content))
		}
	case proto.KindParticipants, proto.KindCursorMove:
	default:
		fmt.Printf("type=%s payload=%s\n", m.Kind, string(m.Payload))
	}
}

func writeLoop(ctx context.Context, session *client.Session) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			var err error
			switch {
			case text == "/who":
				for _, u := range session.Users() {
					fmt.Printf("  %s (%s)\n", u.Username, u.Color)
				}
			case strings.HasPrefix(text, "/code "):
				err = session.SendCodeChange(sendCtx, strings.TrimPrefix(text, "/code "))
			default:
				err = session.SendChat(sendCtx, text)
			}
			cancel()
			if err != nil {
				log.Printf("send error: %v", err)
			}
		}
	}
}
