package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/rovlink/internal/logging"
	"github.com/danmuck/rovlink/internal/robot"
)

func main() {
	configPath := flag.String("config", "", "path to robotctl TOML config (defaults apply when empty)")
	flag.Parse()

	logging.ConfigureRuntime("robotctl")

	cfg := robot.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "robotctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := robot.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "robotctl: %v\n", err)
		os.Exit(1)
	}
}
