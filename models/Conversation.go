package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is a guest/host message thread scoped to one listing. One
// thread exists per (property, guest) pair.
type Conversation struct {
	gorm.Model
	PropertyID    uint      `json:"propertyID" gorm:"not null;index:idx_conversation_pair,unique"`
	GuestID       uint      `json:"guestID" gorm:"not null;index:idx_conversation_pair,unique"`
	HostID        uint      `json:"hostID" gorm:"not null;index"`
	LastMessageAt time.Time `json:"lastMessageAt" gorm:"index"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Guest    *User     `json:"guest,omitempty" gorm:"foreignKey:GuestID"`
	Host     *User     `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

type Message struct {
	gorm.Model
	ConversationID uint   `json:"conversationID" gorm:"not null;index"`
	SenderID       uint   `json:"senderID"`
	ReceiverID     uint   `json:"receiverID"`
	Text           string `json:"text" gorm:"type:text"`
	// Optional typed payload for rich messages (e.g., booking card)
	Type            string `json:"type" gorm:"size:32"` // text | booking_card | property_card
	PreviewTitle    string `json:"previewTitle" gorm:"size:256"`
	PreviewSubtitle string `json:"previewSubtitle" gorm:"size:256"`
	PreviewImageURL string `json:"previewImageURL" gorm:"size:512"`
	RefType         string `json:"refType" gorm:"size:32"` // booking | property
	RefID           *uint  `json:"refID" gorm:"index"`
	// Delivery state
	State       string     `json:"state" gorm:"size:16;index"` // sent|delivered|seen
	DeliveredAt *time.Time `json:"deliveredAt"`
	SeenAt      *time.Time `json:"seenAt"`
}
