package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one row of the chat log. A nil ReceiverID means the row
// belongs to the community wall and is visible to every authenticated
// account; a set ReceiverID makes it private to the sender/receiver pair.
// Rows are immutable once created.
type Message struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Content    string     `gorm:"column:content;type:text;not null"`
	SenderID   uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	ReceiverID *uuid.UUID `gorm:"column:receiver_id;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz;default:now()"`

	// Sender is a read-time projection of the author's profile; it is
	// never written through this association.
	Sender *User `gorm:"foreignKey:SenderID;references:ID"`
}

// IsBroadcast reports whether the message belongs to the community wall.
func (m Message) IsBroadcast() bool {
	return m.ReceiverID == nil
}
