package events

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	// StreamName holds every activity subject
	StreamName = "RENTVERSE_ACTIVITY"
	// SubjectPrefix is followed by the activity action
	SubjectPrefix = "rentverse.activity"
)

// Config holds NATS connection configuration
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
}

// Client wraps the NATS connection and JetStream context
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger
}

// NewClient connects to NATS and makes sure the activity stream exists
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "rentverse-backend"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(10 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[NATS] Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{conn: conn, js: js, logger: logger}
	if err := client.ensureStream(); err != nil {
		logger.WithError(err).Warn("Failed to ensure activity stream")
	}

	log.Printf("Connected to NATS at %s", cfg.URL)
	return client, nil
}

// Close drains and closes the connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Drain()
		c.conn.Close()
	}
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *Client) ensureStream() error {
	streamCfg := nats.StreamConfig{
		Name:        StreamName,
		Description: "Rentverse activity log entries",
		Subjects:    []string{SubjectPrefix + ".>"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxMsgs:     100000,
		Discard:     nats.DiscardOld,
		Replicas:    1,
	}

	_, err := c.js.StreamInfo(streamCfg.Name)
	switch {
	case err == nats.ErrStreamNotFound:
		if _, err := c.js.AddStream(&streamCfg); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Printf("Created %s stream", StreamName)
	case err != nil:
		return fmt.Errorf("failed to check stream: %w", err)
	}
	return nil
}
