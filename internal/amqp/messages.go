package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationMessage asks the delivery worker to notify one member.
// Delivery channels (push, email) are the worker's concern.
type NotificationMessage struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Email       string    `json:"email,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReportID    string    `json:"report_id,omitempty"`
	Period      string    `json:"period,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewNotificationMessage stamps a fresh message id and time.
func NewNotificationMessage(recipientID, email, subject, body string) *NotificationMessage {
	return &NotificationMessage{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Email:       email,
		Subject:     subject,
		Body:        body,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message body.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
