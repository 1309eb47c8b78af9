// Package bus carries events between the log watchers and their
// consumers over an embedded NATS server. The server does not listen on
// any socket; all traffic stays in-process.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ernie/teamkeeper/internal/domain"
)

const (
	subjectPrefix = "teamkeeper.events."
	// subjectAll matches every event subject. Consumers subscribe here so
	// each consumer sees events in publish order across all types.
	subjectAll = subjectPrefix + ">"

	readyTimeout = 5 * time.Second
)

// Bus is an in-process event bus backed by an embedded NATS server
type Bus struct {
	srv *natsserver.Server
	nc  *nats.Conn
}

// New starts the embedded server and connects to it
func New() (*Bus, error) {
	opts := &natsserver.Options{
		ServerName: "teamkeeper",
		DontListen: true,
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(readyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %v", readyTimeout)
	}

	nc, err := nats.Connect("", nats.InProcessServer(srv))
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("connecting to embedded nats server: %w", err)
	}

	return &Bus{srv: srv, nc: nc}, nil
}

// Publish sends an event to all subscribers. The event is stamped with
// an ID and timestamp if the caller left them empty.
func (b *Bus) Publish(event domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return b.nc.Publish(subjectPrefix+event.Type, data)
}

// Subscribe delivers every published event to handler. Each subscription
// has its own delivery goroutine, so a handler sees events one at a time
// in publish order.
func (b *Bus) Subscribe(handler func(domain.Event)) (*nats.Subscription, error) {
	return b.nc.Subscribe(subjectAll, func(msg *nats.Msg) {
		var event domain.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		handler(event)
	})
}

// Close drains the connection and shuts the embedded server down
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Drain()
	}
	if b.srv != nil {
		b.srv.Shutdown()
		b.srv.WaitForShutdown()
	}
}
