package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smartvision/models"
)

// changesURL maps the store base URL onto the websocket scheme.
func (c *Client) changesURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/") + c.cfg.ChangesPath
}

// Watch subscribes to the store change feed and calls fn for each change
// until ctx is done or the connection drops. It returns ctx.Err() on
// cancellation.
func (c *Client) Watch(ctx context.Context, fn func(models.Change)) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.StoreTimeout,
		Jar:              c.jar,
	}
	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())

	endpoint := c.changesURL()
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("%w: watch: %v", ErrStore, err)
	}
	log.Infof("Subscribed to store changes at %s", endpoint)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		var ch models.Change
		if err := conn.ReadJSON(&ch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: watch: %v", ErrStore, err)
		}
		log.WithFields(log.Fields{"entity": ch.Entity, "action": ch.Action, "id": ch.ID}).Debug("Store change received")
		fn(ch)
	}
}
