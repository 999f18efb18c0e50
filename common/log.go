package common

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// SetupLogging selects the diagnostics handler and level.
// Format is one of cli, text or json.
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	switch strings.ToLower(format) {
	case "", "cli":
		log.SetHandler(cli.New(os.Stderr))
	case "text":
		log.SetHandler(text.New(os.Stderr))
	case "json":
		log.SetHandler(json.New(os.Stderr))
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	log.SetLevel(lvl)
	return nil
}

// LogResult logs the outcome of an operation on an entity. Expected
// outcomes, such as a dismissed prompt, are passed in quiet and logged at
// debug level.
func LogResult(entity, op string, id int64, e error, quiet ...error) {
	ctx := log.WithFields(log.Fields{"entity": entity, "op": op})
	if id != 0 {
		ctx = ctx.WithField("id", id)
	}
	if e == nil {
		ctx.Info("Operation succeeded")
		return
	}
	for _, q := range quiet {
		if errors.Is(e, q) {
			ctx.Debugf("Operation stopped: %v", e)
			return
		}
	}
	ctx.Warnf("Operation failed: %v", e)
}
