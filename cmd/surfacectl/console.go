package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/surface"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/ergochat/readline"
)

var (
	ErrUsage         = errors.New("usage")
	ErrUnknownCmd    = errors.New("unknown command")
	ErrUnknownKey    = errors.New("unknown key")
	ErrInvalidNumber = errors.New("invalid number")
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("connect"),
	readline.PcItem("arm"),
	readline.PcItem("disarm"),
	readline.PcItem("resync"),
	readline.PcItem("status"),
	readline.PcItem("get"),
	readline.PcItem("keys"),
	readline.PcItem("set",
		readline.PcItem("motor"),
	),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

const helpText = `commands:
  connect <host:port>         dial the robot
  arm | disarm                set the requested arm state
  resync                      ask the robot for its full state
  status                      robot status, link and round trip
  keys                        list replicated keys
  get <key>                   print one replicated value
  set motor <motor> <percent> command a motor, e.g. set motor front_l 40
  quit | exit                 leave the console
`

// console executes operator commands against a surface service.
type console struct {
	svc *surface.Service
	out io.Writer
}

// execute runs one command line. It returns io.EOF for quit.
func (c *console) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		_, err := io.WriteString(c.out, helpText)
		return err
	case "connect":
		if len(args) != 1 {
			return fmt.Errorf("%w: connect <host:port>", ErrUsage)
		}
		if err := c.svc.Connect(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "dialing %s\n", args[0])
	case "arm":
		c.svc.Arm()
		fmt.Fprintln(c.out, "arm requested")
	case "disarm":
		c.svc.Disarm()
		fmt.Fprintln(c.out, "disarm requested")
	case "resync":
		return c.svc.RequestResync()
	case "status":
		c.status()
	case "keys":
		for _, k := range c.svc.Robot().Store().Keys() {
			fmt.Fprintln(c.out, k)
		}
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("%w: get <key>", ErrUsage)
		}
		return c.get(store.Key(args[0]))
	case "set":
		return c.set(args)
	case "quit", "exit":
		return io.EOF
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCmd, cmd)
	}
	return nil
}

func (c *console) status() {
	status, ok := c.svc.Status()
	if !ok {
		status = types.NoPeer()
	}
	link := "down"
	if conn, ok := c.svc.Connected(); ok {
		link = conn.Endpoint.String()
	}
	fmt.Fprintf(c.out, "status=%s requested=%s link=%s rtt=%s\n",
		status, c.svc.Robot().ArmState(), link, c.svc.RTT())
}

func (c *console) get(key store.Key) error {
	snapshot := c.svc.Robot().Store().Snapshot()
	i := sort.Search(len(snapshot), func(i int) bool { return snapshot[i].Key >= key })
	if i == len(snapshot) || snapshot[i].Key != key {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	origin, _ := c.svc.Robot().Store().OriginOf(key)
	fmt.Fprintf(c.out, "%s = %v (%s)\n", key, snapshot[i].Value, origin)
	return nil
}

func (c *console) set(args []string) error {
	if len(args) != 3 || strings.ToLower(args[0]) != "motor" {
		return fmt.Errorf("%w: set motor <motor> <percent>", ErrUsage)
	}
	id, err := types.ParseMotorID(args[1])
	if err != nil {
		return err
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "%"), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, args[2])
	}
	speed := types.NewPercent(pct / 100)
	surface.EmitUpdate(c.svc.Robot(), tokens.MotorSpeed(id), speed)
	fmt.Fprintf(c.out, "%s -> %s\n", id, speed)
	return nil
}
