package notification

import "sync"

// Message is one captured mail.
type Message struct {
	DisplayName string
	Address     string
	Subject     string
	Body        string
}

// MemoryMailer captures messages in memory for tests.
type MemoryMailer struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[string]error
}

// NewMemoryMailer creates an empty MemoryMailer
func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{failFor: make(map[string]error)}
}

// SendMail implements Mailer
func (m *MemoryMailer) SendMail(displayName, address, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[address]; ok {
		return err
	}

	m.messages = append(m.messages, Message{
		DisplayName: displayName,
		Address:     address,
		Subject:     subject,
		Body:        body,
	})
	return nil
}

// FailFor makes sends to the given address return err.
func (m *MemoryMailer) FailFor(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[address] = err
}

// Messages returns the captured messages in send order.
func (m *MemoryMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
