// Package events publishes document lifecycle notifications on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// UploadedEvent is the message body published for each new catalog entry.
type UploadedEvent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher implements documents.UploadNotifier on a NATS connection.
type Publisher struct {
	conn    *nats.Conn
	pub     publisher
	subject string
}

// Connect dials NATS and keeps reconnecting in the background; publishing is
// best-effort so a missing server never blocks startup.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("extractiq"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, pub: conn, subject: subject}, nil
}

// Close closes the connection without draining it.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// DocumentUploaded publishes an UploadedEvent for entry.
func (p *Publisher) DocumentUploaded(ctx context.Context, entry model.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(UploadedEvent{
		ID:          entry.ID,
		Name:        entry.Name,
		ContentType: entry.ContentType,
		Size:        entry.Size,
		UploadedAt:  entry.UploadedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal uploaded event: %w", err)
	}
	if err := p.pub.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}
