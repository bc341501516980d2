package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOTP               Kind = "otp"
	KindTicketBooked      Kind = "ticket_booked"
	KindEventAddition     Kind = "event_addition"
	KindEventUnattendance Kind = "event_unattendance"
	KindPasswordReset     Kind = "password_reset"
)

// Recipient is who a message is addressed to.
type Recipient struct {
	UserID string
	Email  string
	Name   string
}

// Message is a rendered notification ready for delivery.
type Message struct {
	Kind    Kind
	To      Recipient
	Subject string
	HTML    string
	Text    string
}

type OTPData struct {
	Name      string
	Code      string
	ExpiresIn time.Duration
}

type TicketBookedData struct {
	Name        string
	OrderNumber string
	EventTitle  string
	StartsAt    time.Time
	Tickets     []string
	Total       decimal.Decimal
}

type EventAdditionData struct {
	Name       string
	EventTitle string
	StartsAt   time.Time
	Location   string
}

type EventUnattendanceData struct {
	Name         string
	EventTitle   string
	TicketNumber string
}

type PasswordResetData struct {
	Name      string
	Code      string
	ExpiresIn time.Duration
}

var funcs = template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format("Mon 02 Jan 2006 15:04 MST") },
	"minutes": func(d time.Duration) int {
		return int(d.Minutes())
	},
}

var templates = map[Kind]struct {
	subject string
	body    *template.Template
}{
	KindOTP: {
		subject: "Your verification code",
		body: template.Must(template.New("otp").Funcs(funcs).Parse(
			`<p>Hello {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{minutes .ExpiresIn}} minutes.</p>`)),
	},
	KindTicketBooked: {
		subject: "Your tickets are booked",
		body: template.Must(template.New("ticket_booked").Funcs(funcs).Parse(
			`<p>Hello {{.Name}},</p>
<p>Order <strong>{{.OrderNumber}}</strong> for {{.EventTitle}} on {{when .StartsAt}} is confirmed.</p>
<ul>{{range .Tickets}}<li>{{.}}</li>{{end}}</ul>
<p>Total paid: {{.Total.StringFixed 2}}</p>`)),
	},
	KindEventAddition: {
		subject: "Your event is live",
		body: template.Must(template.New("event_addition").Funcs(funcs).Parse(
			`<p>Hello {{.Name}},</p>
<p>{{.EventTitle}} at {{.Location}} on {{when .StartsAt}} is now open for ticket sales.</p>`)),
	},
	KindEventUnattendance: {
		subject: "Your ticket was cancelled",
		body: template.Must(template.New("event_unattendance").Funcs(funcs).Parse(
			`<p>Hello {{.Name}},</p>
<p>Ticket {{.TicketNumber}} for {{.EventTitle}} has been cancelled.</p>`)),
	},
	KindPasswordReset: {
		subject: "Reset your password",
		body: template.Must(template.New("password_reset").Funcs(funcs).Parse(
			`<p>Hello {{.Name}},</p>
<p>Use the code <strong>{{.Code}}</strong> to choose a new password. It expires in {{minutes .ExpiresIn}} minutes.</p>
<p>If you did not ask for this, you can ignore this message.</p>`)),
	},
}

// Render builds the message of the given kind for to from data.
func Render(kind Kind, to Recipient, data any) (Message, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown message kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s: %w", kind, err)
	}

	return Message{
		Kind:    kind,
		To:      to,
		Subject: tpl.subject,
		HTML:    buf.String(),
		Text:    tpl.subject,
	}, nil
}
