package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var (
	ErrNoRecipients = errors.New("email has no recipients")
	ErrNoContent    = errors.New("email has no content")
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		From        mail.Address // zero value means the configured default sender
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
		Attachments []Attachment
	}

	// EmailService is the outbound mail transport.
	EmailService interface {
		// Send delivers msg, returning an error if the transport rejects it.
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

// NewPlainEmail builds a text/plain message from the (sender, recipient, subject, body) quadruple.
func NewPlainEmail(sender, to, subject, body string) (*EmailMessage, error) {
	msg := &EmailMessage{Subject: subject, TextContent: body}
	if sender != "" {
		from, err := mail.ParseAddress(sender)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing sender %q", sender)
		}
		msg.From = *from
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing recipient %q", to)
	}
	msg.To = []mail.Address{*rcpt}
	return msg, nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Check reports whether the message can be handed to a transport.
func (m *EmailMessage) Check() error {
	if !m.HasRecipients() {
		return ErrNoRecipients
	}
	if !(m.HasContent() || m.HasAttachments()) {
		return ErrNoContent
	}
	return nil
}

// IsEmailValid reports whether addr parses as a single RFC 5322 address.
func IsEmailValid(addr string) bool {
	_, err := mail.ParseAddress(addr)
	return err == nil
}
