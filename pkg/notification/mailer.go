package notification

// Mailer delivers a single notification message to one recipient.
type Mailer interface {
	SendMail(displayName, address, subject, body string) error
}

// NopMailer discards all messages. Used when no mail relay is configured.
type NopMailer struct{}

// SendMail implements Mailer
func (NopMailer) SendMail(displayName, address, subject, body string) error {
	return nil
}
