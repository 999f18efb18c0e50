package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"smartvision/common"
	"smartvision/config"
	"smartvision/controller"
	"smartvision/version"
)

const usage = `Usage: zonesync [flags] <command> [args]

Commands:
  zones list
  zones draw -file shape.geojson
  zones import -file zones.geojson
  zones edit -id ID [-file shape.geojson]
  zones delete -id ID [-yes]
  cameras list
  cameras add
  cameras edit -id ID
  cameras move -id ID
  cameras delete -id ID
  watch
  version

Flags:
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	cfg := config.Load()

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.StringVar(&cfg.StoreURL, "store", cfg.StoreURL, "Base URL of the zone and camera store.")
	flag.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "Diagnostics log level.")
	flag.StringVar(&cfg.BoundaryFile, "boundary", cfg.BoundaryFile, "GeoJSON file with the reference boundary.")
	flag.BoolVar(&cfg.RenameOnEdit, "rename", cfg.RenameOnEdit, "Prompt for a new name when a zone is edited.")
	flag.Parse()

	if err := common.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Println(version.Get("zonesync"))
		return
	}

	os.Exit(run(cfg, args))
}

func run(cfg *config.Config, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Errorf("Failed to start: %v", err)
		return 1
	}
	defer a.close()

	err = a.run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		log.Error(err.Error())
		flag.Usage()
		return 2
	case errors.Is(err, controller.ErrCancelled), errors.Is(err, context.Canceled):
		return 130
	default:
		log.Errorf("%s failed: %v", args[0], err)
		return 1
	}
}
