package chat

import (
	"fmt"
	"strings"
	"time"
)

// ContactProfile is an enriched view of a message author. Created on
// first enrichment, updated on re-enrichment.
type ContactProfile struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Bio       string `json:"bio,omitempty"`

	// Derived metadata from the ingestion source.
	CommonGroups int    `json:"common_groups,omitempty"`
	ChannelID    int64  `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`

	FirstSeenSourceID int64     `json:"first_seen_source_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
	MessageCount      int       `json:"message_count,omitempty"`
}

// DisplayName returns a human-readable name for the contact.
func (c ContactProfile) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	if c.Handle != "" {
		return "@" + c.Handle
	}
	return fmt.Sprintf("user %d", c.ID)
}

// Permalink returns a link to the contact.
func (c ContactProfile) Permalink() string {
	if c.Handle != "" {
		return "https://t.me/" + c.Handle
	}
	return fmt.Sprintf("tg://user?id=%d", c.ID)
}
