package models

import (
	"database/sql"
	"time"
)

// Character is immutable reference data seeded at startup. Bosses (IsBoss)
// represent difficulty tiers; the rest are playable avatars.
type Character struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	IsBoss    bool      `json:"is_boss"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Difficulty scales project health and task rewards. Each tier is fronted by
// a boss character.
type Difficulty struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	CharacterID int       `json:"character_id"`
	Multiplier  float64   `json:"multiplier"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	AvatarURL   string        `json:"avatar_url"`
	CharacterID sql.NullInt64 `json:"character_id"`
	Exp         int           `json:"exp"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Project is a quest: a boss to defeat by completing its tasks. The ID is an
// opaque UUID and never reused. Salt is a per-project secret used to sign
// shareable links.
type Project struct {
	ID           string       `json:"id"`
	UserID       int          `json:"user_id"`
	DifficultyID int          `json:"difficulty_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	DueDate      sql.NullTime `json:"due_date"`
	Salt         string       `json:"salt,omitempty"`
	IsPublic     bool         `json:"is_public"`
	IsFinished   bool         `json:"is_finished"`
	Health       int          `json:"health"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type ProjectAttachment struct {
	ID        int       `json:"id"`
	ProjectID string    `json:"project_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a mission within a project. Creator and assignee may differ.
type Task struct {
	ID          int        `json:"id"`
	ProjectID   string     `json:"project_id"`
	UserID      int        `json:"user_id"`
	AssigneeID  int        `json:"assignee_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Exp         int        `json:"exp"`
	DueDate     time.Time  `json:"due_date"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TaskAttachment struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Collaboration links a user to a project they share but do not own.
type Collaboration struct {
	ProjectID string    `json:"project_id"`
	UserID    int       `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
