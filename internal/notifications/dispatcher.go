package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

// Dispatcher delivers a single notification on one channel.
type Dispatcher interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
	SendPush(ctx context.Context, token, title, body string, data map[string]string) error
}

// Envelope is the wire format published for the delivery workers.
type Envelope struct {
	Channel   enums.NotificationChannel `json:"channel"`
	From      string                    `json:"from,omitempty"`
	To        string                    `json:"to"`
	Subject   string                    `json:"subject,omitempty"`
	Body      string                    `json:"body"`
	Data      map[string]string         `json:"data,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

type publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubDispatcher hands notifications to the email/SMS/push workers through a Pub/Sub topic.
type PubSubDispatcher struct {
	publisher publisher
	from      string
	now       func() time.Time
}

func NewPubSubDispatcher(pub publisher, from string) (*PubSubDispatcher, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return &PubSubDispatcher{publisher: pub, from: from, now: time.Now}, nil
}

func (d *PubSubDispatcher) SendEmail(ctx context.Context, to, subject, body string) error {
	return d.publish(ctx, Envelope{Channel: enums.NotificationChannelEmail, From: d.from, To: to, Subject: subject, Body: body})
}

func (d *PubSubDispatcher) SendSMS(ctx context.Context, to, body string) error {
	return d.publish(ctx, Envelope{Channel: enums.NotificationChannelSMS, To: to, Body: body})
}

func (d *PubSubDispatcher) SendPush(ctx context.Context, token, title, body string, data map[string]string) error {
	return d.publish(ctx, Envelope{Channel: enums.NotificationChannelPush, To: token, Subject: title, Body: body, Data: data})
}

func (d *PubSubDispatcher) publish(ctx context.Context, env Envelope) error {
	if strings.TrimSpace(env.To) == "" {
		return fmt.Errorf("%s recipient is empty", env.Channel)
	}
	env.CreatedAt = d.now().UTC()
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", env.Channel, err)
	}
	if _, err := d.publisher.Publish(ctx, payload, map[string]string{"channel": string(env.Channel)}); err != nil {
		return fmt.Errorf("publish %s notification: %w", env.Channel, err)
	}
	return nil
}

// LogDispatcher writes notifications to the structured log. Used when Pub/Sub is not configured.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) SendEmail(ctx context.Context, to, subject, _ string) error {
	d.log(ctx, enums.NotificationChannelEmail, to, subject)
	return nil
}

func (d *LogDispatcher) SendSMS(ctx context.Context, to, body string) error {
	d.log(ctx, enums.NotificationChannelSMS, to, body)
	return nil
}

func (d *LogDispatcher) SendPush(ctx context.Context, token, title, _ string, _ map[string]string) error {
	d.log(ctx, enums.NotificationChannelPush, token, title)
	return nil
}

func (d *LogDispatcher) log(ctx context.Context, channel enums.NotificationChannel, to, summary string) {
	if d.logg == nil {
		return
	}
	ctx = d.logg.WithFields(ctx, map[string]any{"channel": string(channel), "to": to})
	d.logg.Info(ctx, "notification: "+summary)
}
