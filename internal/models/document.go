package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentCreate is the ingestion payload for a guidance document.
type DocumentCreate struct {
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags,omitempty"`
	Content string   `json:"content"`
}

// Document is a stored guidance document. Documents are owned independently
// and referenced (not owned) by recommendation citations.
type Document struct {
	DocID     uuid.UUID `json:"doc_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Tags      []string  `json:"tags,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchText returns the haystack used by retrieval strategies.
func (d Document) SearchText() string {
	text := d.Title + "\n" + d.Source + "\n"
	for _, tag := range d.Tags {
		text += tag + " "
	}
	return text + "\n" + d.Content
}
