package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/pocketbase/pocketbase/tools/mailer"
	pubnub "github.com/pubnub/go"
)

var ErrNoAddress = errors.New("notify: recipient has no address for this channel")

// Channel delivers a rendered message over one medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// EmailChannel sends messages through the application mailer.
type EmailChannel struct {
	client func() mailer.Mailer
	from   mail.Address
}

// NewEmailChannel takes a client factory so that mail settings changed at runtime are picked up.
func NewEmailChannel(client func() mailer.Mailer, from mail.Address) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.To.Email == "" {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.client().Send(&mailer.Message{
		From:    c.from,
		To:      []mail.Address{{Name: msg.To.Name, Address: msg.To.Email}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
}

// Publisher publishes a payload on a realtime channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload map[string]any) error
}

// PushChannel sends messages to the recipient's personal realtime channel.
type PushChannel struct {
	pub Publisher
}

func NewPushChannel(pub Publisher) *PushChannel {
	return &PushChannel{pub: pub}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.To.UserID == "" {
		return ErrNoAddress
	}
	return c.pub.Publish(ctx, UserChannel(msg.To.UserID), map[string]any{
		"type":    "notification",
		"kind":    string(msg.Kind),
		"subject": msg.Subject,
	})
}

// UserChannel is the realtime channel a user's clients subscribe to.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// PubNubPublisher adapts a PubNub client to Publisher.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey, uuid string) *PubNubPublisher {
	cfg := pubnub.NewConfig()
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey
	cfg.UUID = uuid

	return &PubNubPublisher{pn: pubnub.NewPubNub(cfg)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(payload).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish %s: %w", channel, err)
	}
	return nil
}
