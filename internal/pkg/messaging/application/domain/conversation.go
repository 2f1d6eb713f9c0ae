package messaging

import "time"

// Profile is the denormalized display identity of one side of a conversation,
// kept on the conversation row to avoid joins on every inbox render.
type Profile struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Conversation is a durable pairing between exactly one customer and one
// vendor. Participants are fixed for the conversation's lifetime;
// conversations are created by a find-or-create flow elsewhere and are never
// deleted here.
type Conversation struct {
	ID            string     `db:"id" json:"id"`
	Customer      Profile    `json:"customer"`
	Vendor        Profile    `json:"vendor"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant tells whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	if c == nil {
		return false
	}
	return userID == c.Customer.UserID || userID == c.Vendor.UserID
}

// OtherParty returns the display profile of the participant opposite viewerID.
func (c *Conversation) OtherParty(viewerID string) (Profile, error) {
	switch viewerID {
	case c.Customer.UserID:
		return c.Vendor, nil
	case c.Vendor.UserID:
		return c.Customer, nil
	default:
		return Profile{}, ErrNotParticipant
	}
}
