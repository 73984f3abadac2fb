package portfolio

import "time"

// Project is a delivered site shown on the public portfolio with a live
// preview.
type Project struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Title        string    `bson:"title" json:"title"`
	Slug         string    `bson:"slug" json:"slug"`
	Category     string    `bson:"category" json:"category"`
	Summary      string    `bson:"summary" json:"summary"`
	LiveURL      string    `bson:"live_url,omitempty" json:"live_url,omitempty"`
	ThumbnailURL string    `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	IsPublic     bool      `bson:"is_public" json:"is_public"`
	SortOrder    int       `bson:"sort_order" json:"sort_order"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

type UpsertRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Slug         string `json:"slug" validate:"omitempty,slug"`
	Category     string `json:"category" validate:"required,max=100"`
	Summary      string `json:"summary" validate:"required,max=2000"`
	LiveURL      string `json:"live_url" validate:"omitempty,url"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublic     *bool  `json:"is_public"`
	SortOrder    *int   `json:"sort_order" validate:"omitempty,gte=0"`
}

type ListFilter struct {
	Category string
}
