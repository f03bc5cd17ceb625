// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet represents a saved code snippet.
//
// Snippet is the STORED shape, not the wire shape. What a client sees is
// decided by the serializer package (serializer.SnippetResponse), which is why
// there are no json tags here: the owner is stored as an ID but rendered as a
// username, and the client must never be able to set it.
//
// OwnerUsername is not a column: the repository fills it with a JOIN so the
// serializer can render the owner without a second query.
type Snippet struct {
	ID            string
	Title         string
	Code          string
	Linenos       bool
	Language      string
	Style         string
	OwnerID       string
	OwnerUsername string
	CreatedAt     time.Time
}
