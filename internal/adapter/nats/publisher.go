// Package nats fans alert events out on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Publisher implements notify.Sink. Events go to
// <subject>.<zone>.<kind> so subscribers can filter with wildcards such as
// "sentinel.alerts.bandra.>" or "sentinel.alerts.*.escalated".
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials url and returns a Publisher rooted at subject.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("sentinel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

func (p *Publisher) Name() string { return "nats" }

func (p *Publisher) Publish(ctx context.Context, ev domain.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := eventMessage(p.subject, ev)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

func eventMessage(root string, ev domain.AlertEvent) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal alert event: %w", err)
	}
	hdr := nats.Header{}
	hdr.Set("Alert-Id", ev.AlertID)
	hdr.Set("Severity", string(ev.Severity))
	hdr.Set("Threat-Type", string(ev.ThreatType))
	return &nats.Msg{
		Subject: eventSubject(root, ev),
		Data:    data,
		Header:  hdr,
	}, nil
}

func eventSubject(root string, ev domain.AlertEvent) string {
	zone := strings.ToLower(strings.ReplaceAll(ev.Zone, " ", "_"))
	if zone == "" {
		zone = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", root, zone, ev.Kind)
}
