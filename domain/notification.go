package domain

import "time"

// Notification is created only as a side effect of board, task and contributor
// mutations, and removed only when the recipient acknowledges it.
type Notification struct {
	ID           string    `json:"id"`
	RecipientID  string    `json:"recipientId"`
	SenderID     string    `json:"senderId,omitempty"`
	SenderName   string    `json:"senderName,omitempty"`
	Message      string    `json:"message"`
	Sent         time.Time `json:"sent"`
	Acknowledged bool      `json:"acknowledged"`
}
