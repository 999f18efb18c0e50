package term

import (
	"io"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"

	"smartvision/controller"
)

// Notifier prints user notifications through its own cli logger, apart
// from the diagnostics log.
type Notifier struct {
	logger *log.Logger
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{
		logger: &log.Logger{
			Handler: cli.New(out),
			Level:   log.InfoLevel,
		},
	}
}

func (n *Notifier) Notify(note controller.Notification) {
	switch note.Level {
	case controller.LevelSuccess:
		n.logger.WithField("status", "ok").Info(note.Message)
	case controller.LevelWarning:
		n.logger.Warn(note.Message)
	case controller.LevelError:
		n.logger.Error(note.Message)
	default:
		n.logger.Info(note.Message)
	}
}
