package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/rovlink/internal/logging"
	"github.com/danmuck/rovlink/internal/surface"
	"github.com/ergochat/readline"
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func main() {
	configPath := flag.String("config", "", "path to surfacectl TOML config (defaults apply when empty)")
	connect := flag.String("connect", "", "robot address to dial on start, overrides robot_addr")
	flag.Parse()

	logging.ConfigureRuntime("surfacectl")

	cfg := surface.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "surfacectl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if addr := strings.TrimSpace(*connect); addr != "" {
		cfg.RobotAddr = addr
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "surfacectl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg surface.ServiceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	svc := surface.NewServiceWithConfig(cfg)
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-svc.Notifications():
				fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", n.Level, n.Title, n.Body)
			}
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rov> ",
		HistoryFile:     ".surfacectl_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		stop()
		<-done
		return err
	}
	defer rl.Close()

	c := &console{svc: svc, out: os.Stdout}
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) != 0 {
				continue
			}
			break
		}
		if err != nil {
			break
		}
		if err := c.execute(line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	stop()
	return <-done
}
