// Package chat defines the chat-message data model and the ingestion
// source boundary.
package chat

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind classifies a chat source.
type SourceKind string

const (
	KindChannel    SourceKind = "channel"
	KindGroup      SourceKind = "group"
	KindSupergroup SourceKind = "supergroup"
	KindForum      SourceKind = "forum"
	KindUser       SourceKind = "user"
)

// Author identifies the sender of a message.
type Author struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns a human-readable name for the author.
func (a Author) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name != "" {
		return name
	}
	if a.Handle != "" {
		return "@" + a.Handle
	}
	return fmt.Sprintf("user %d", a.ID)
}

// Message is a single chat message. Messages are immutable after
// ingestion; re-indexing overwrites by identity, never appends.
type Message struct {
	ID           int64     `json:"id"`
	SourceID     int64     `json:"source_id"`
	SourceTitle  string    `json:"source_title"`
	SourceHandle string    `json:"source_handle,omitempty"`
	TopicID      int64     `json:"topic_id,omitempty"`
	TopicTitle   string    `json:"topic_title,omitempty"`
	Author       Author    `json:"author"`
	Text         string    `json:"text"`
	Date         time.Time `json:"date"`
	ReplyToID    int64     `json:"reply_to_id,omitempty"`
	Views        int64     `json:"views,omitempty"`
	Forwards     int64     `json:"forwards,omitempty"`
}

// Permalink returns a link to the message. Sources with a public handle
// get the public form; private sources use the c/ form with the -100
// marker prefix stripped from the source id.
func (m Message) Permalink() string {
	if m.SourceHandle != "" {
		return fmt.Sprintf("https://t.me/%s/%d", m.SourceHandle, m.ID)
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", bareSourceID(m.SourceID), m.ID)
}

// bareSourceID strips the -100 supergroup/channel marker prefix.
func bareSourceID(id int64) string {
	s := fmt.Sprintf("%d", id)
	if strings.HasPrefix(s, "-100") {
		return s[4:]
	}
	return strings.TrimPrefix(s, "-")
}

// SourceInfo describes an indexed (source, topic) pair.
type SourceInfo struct {
	SourceID     int64  `json:"source_id"`
	SourceTitle  string `json:"source_title"`
	TopicID      int64  `json:"topic_id,omitempty"`
	TopicTitle   string `json:"topic_title,omitempty"`
	MessageCount int    `json:"message_count"`
}
