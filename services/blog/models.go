package blog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;size:120;not null" json:"slug"`
	Description *string   `gorm:"size:500" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Post is a blog article. Drafts (Published false) are only visible to admins.
type Post struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Excerpt    string    `gorm:"size:500;not null" json:"excerpt"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ImageURL   *string   `gorm:"size:2048" json:"image_url,omitempty"`
	CategoryID *string   `gorm:"size:36;index" json:"category_id,omitempty"`
	Category   *Category `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	ReadTime   int       `gorm:"not null" json:"read_time" doc:"Estimated minutes to read"`
	Published  bool      `gorm:"not null;index" json:"published"`
	Source     *string   `gorm:"size:200" json:"source,omitempty"`
	SourceURL  *string   `gorm:"size:2048" json:"source_url,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
