package models

import "time"

// MaxNoteLength is the longest note text accepted, counted in characters.
const MaxNoteLength = 500

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Note struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Text      string    `json:"text"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotePatch carries the optional fields of an update. Nil means "leave as is".
type NotePatch struct {
	Text   *string `json:"text"`
	Pinned *bool   `json:"pinned"`
}

// UserFile and NoteFile are the persisted document shapes.
type UserFile struct {
	Users []User `json:"users"`
}

type NoteFile struct {
	Notes []Note `json:"notes"`
}
