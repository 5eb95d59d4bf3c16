// Package model defines the records kept in the companion's local log.
package model

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one line of the conversation. Messages are never edited.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Thought   string    `json:"thought,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Importance ranks a memory.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
)

// Memory is a remembered fragment of a past message.
type Memory struct {
	ID         int64      `json:"id"`
	Content    string     `json:"content"`
	Importance Importance `json:"importance"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GalleryItem is a generated image.
type GalleryItem struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	MediaURL  string    `json:"media_url"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRoles are the allowed message roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
}

// ValidImportance are the allowed memory importance levels.
var ValidImportance = map[Importance]bool{
	ImportanceLow:    true,
	ImportanceMedium: true,
}
