package post

import "time"

type Post struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Image     *string   `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
