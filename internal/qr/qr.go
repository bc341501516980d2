// Package qr derives the verification code carried by each ticket and renders
// it as a scannable image or a printable ticket.
package qr

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrEmptySecret = errors.New("qr: signing secret is empty")

// Signer derives ticket codes from a server-held secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex HMAC-SHA256 of the ticket's holder, event and number.
func (s *Signer) Sign(userID, eventID, ticketNumber string) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s|%s|%s", userID, eventID, ticketNumber)
	return hex.EncodeToString(h.Sum(nil))
}

// Equal compares a presented code with the stored one in constant time.
func Equal(presented, stored string) bool {
	return hmac.Equal([]byte(presented), []byte(stored))
}

// Verify reports whether presented is the code Sign would produce.
func (s *Signer) Verify(presented, userID, eventID, ticketNumber string) bool {
	return Equal(presented, s.Sign(userID, eventID, ticketNumber))
}

// PNG renders code as a QR image of size×size pixels.
func PNG(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// TicketSheet holds what is printed on a ticket.
type TicketSheet struct {
	EventTitle   string
	Location     string
	StartsAt     time.Time
	HolderName   string
	TicketType   string
	TicketNumber string
	Code         string
}

// TicketPDF renders a one-page A4 ticket with the QR code on it.
func TicketPDF(sheet TicketSheet) ([]byte, error) {
	png, err := PNG(sheet.Code, 256)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(sheet.EventTitle, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, sheet.EventTitle)
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		"Ticket: " + sheet.TicketNumber,
		"Type: " + sheet.TicketType,
		"Holder: " + sheet.HolderName,
		"Venue: " + sheet.Location,
		"Starts: " + sheet.StartsAt.UTC().Format("Mon 02 Jan 2006 15:04 MST"),
	}
	for _, l := range lines {
		pdf.Cell(0, 8, l)
		pdf.Ln(8)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("ticket-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("ticket-qr", 140, 30, 50, 50, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
