package notification

import (
	"bytes"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
)

// SMTPMailer sends mail through an SMTP relay. Authentication is plain and
// only attempted when a username is configured.
type SMTPMailer struct {
	Addr     string // relay address, host[:port]
	Username string
	Password string
	From     string // sender address
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(addr, username, password, from string) (*SMTPMailer, error) {
	if addr == "" {
		return nil, fmt.Errorf("smtp relay address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	return &SMTPMailer{Addr: addr, Username: username, Password: password, From: from}, nil
}

// SendMail implements Mailer
func (m *SMTPMailer) SendMail(displayName, address, subject, body string) error {
	to := mail.Address{Name: displayName, Address: address}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to.String())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.Username != "" {
		host, _, err := net.SplitHostPort(m.Addr)
		if err != nil {
			return fmt.Errorf("invalid smtp address %q: %w", m.Addr, err)
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	if err := smtp.SendMail(m.Addr, auth, m.From, []string{address}, msg.Bytes()); err != nil {
		return fmt.Errorf("sending mail to %q: %w", address, err)
	}
	return nil
}
