package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/NicolasHaas/sosmeet/pkg/client"
	"github.com/NicolasHaas/sosmeet/pkg/logging"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

const usage = `commands:
  /friend <username>
  /group <name>
  /member <groupId> <username>
  /code <groupId> <mode> <title> [message]
  /alarm <groupId> <codeId> [message]
  /presence <groupId>
  /call <groupId>
  /hangup
  /quit`

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "relay WebSocket URL")
	user := flag.String("user", "", "username to log in as")
	flag.Parse()

	// Default to "warn" so events stay readable; override with SOSMEET_LOG_LEVEL.
	level := "warn"
	if v := os.Getenv("SOSMEET_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Format: "text", Output: os.Stderr})

	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, *url, nil)
	if err != nil {
		slog.Error("connect", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	state, err := c.Login(*user)
	if err != nil {
		slog.Error("login", "err", err)
		os.Exit(1)
	}
	printState(state)
	fmt.Println(usage)

	call := &calls{me: state.Me, sender: c}
	c.SetEventHandler(call.handle)
	c.StartReceiving()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			fmt.Println("connection closed")
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				call.hangup()
				return
			}
			if handled, err := call.runCallCommand(line); handled {
				if err != nil {
					fmt.Println(err)
				}
				continue
			}
			cmd, err := parseLine(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if cmd == nil {
				continue
			}
			if err := c.Send(cmd); err != nil {
				slog.Error("send", "err", err)
				return
			}
		}
	}
}

// parseLine turns one input line into a command. Blank lines yield nil.
func parseLine(line string) (protocol.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	args := fields[1:]
	rest := func(from int) string {
		if len(args) <= from {
			return ""
		}
		return strings.Join(args[from:], " ")
	}

	switch fields[0] {
	case "/friend":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /friend <username>")
		}
		return protocol.AddFriend{Friend: args[0]}, nil
	case "/group":
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: /group <name>")
		}
		return protocol.CreateGroup{Name: rest(0)}, nil
	case "/member":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: /member <groupId> <username>")
		}
		return protocol.AddMember{GroupID: args[0], Member: args[1]}, nil
	case "/code":
		if len(args) < 3 {
			return nil, fmt.Errorf("usage: /code <groupId> <mode> <title> [message]")
		}
		return protocol.CreateAlarmCode{GroupID: args[0], Mode: strings.ToUpper(args[1]), Title: args[2], MessageText: rest(3)}, nil
	case "/alarm":
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: /alarm <groupId> <codeId> [message]")
		}
		return protocol.TriggerAlarm{GroupID: args[0], CodeID: args[1], MessageOverride: rest(2)}, nil
	case "/presence":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /presence <groupId>")
		}
		return protocol.CallPresence{GroupID: args[0]}, nil
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", fields[0], usage)
	}
}

func printState(s *protocol.StateEvent) {
	fmt.Printf("logged in as %s, friends: %s\n", s.Me, strings.Join(s.Friends, ", "))
	for _, g := range s.Groups {
		printGroup("group", g)
	}
}

func printGroup(label string, g protocol.GroupView) {
	fmt.Printf("%s %s %q owner=%s members=%s\n", label, g.ID, g.Name, g.Owner, strings.Join(g.Members, ","))
	for _, code := range g.AlarmCodes {
		fmt.Printf("  code %s %-12s %s %s\n", code.ID, code.Mode, code.ColorHex, code.Title)
	}
}

func printEvent(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.ErrorEvent:
		fmt.Printf("error: %s\n", ev.Message)
	case protocol.FriendsUpdatedEvent:
		fmt.Printf("friends: %s <-> %s\n", ev.UserA, ev.UserB)
	case protocol.GroupCreatedEvent:
		printGroup("created", ev.Group)
	case protocol.GroupUpdatedEvent:
		printGroup("updated", ev.Group)
	case protocol.AlarmEvent:
		a := ev.Alarm
		fmt.Printf("\a*** %s [%s] from %s in %s: %s\n", a.CodeTitle, a.Mode, a.TriggeredBy, a.GroupID, a.MessageText)
	case protocol.CallPresenceEvent:
		fmt.Printf("online in %s: %s\n", ev.GroupID, strings.Join(ev.OnlineMembers, ", "))
	case protocol.WebRTCEvent:
		fmt.Printf("signal from %s in %s (%d bytes)\n", ev.From, ev.GroupID, len(ev.Payload))
	default:
		fmt.Printf("%s event\n", ev.EventType())
	}
}
