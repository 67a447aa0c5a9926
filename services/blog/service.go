// Package blog stores the company blog: posts, optionally filed under a
// category, that admins write and the public site lists.
package blog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hapogroup/newsletter/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultReadTime = 5
	MaxReadTime     = 600

	MessagePostDeleted = "Post deleted successfully"

	maxTitleLength       = 200
	maxExcerptLength     = 500
	maxSourceLength      = 200
	maxCategoryName      = 100
	maxCategoryDescLen   = 500
	messagePostNotFound  = "Post not found"
	messageFieldsMissing = "Title, excerpt, and content are required"
)

// PostInput creates a post. ReadTime defaults to DefaultReadTime and
// Published to true.
type PostInput struct {
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Content    string `json:"content"`
	ImageURL   string `json:"image_url,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	ReadTime   int    `json:"read_time,omitempty" doc:"Minutes; defaults to 5"`
	Published  *bool  `json:"published,omitempty" doc:"Defaults to true"`
	Source     string `json:"source,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

// PostUpdate changes only the fields that are set. An empty string clears
// an optional field.
type PostUpdate struct {
	Title      *string `json:"title,omitempty"`
	Excerpt    *string `json:"excerpt,omitempty"`
	Content    *string `json:"content,omitempty"`
	ImageURL   *string `json:"image_url,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	ReadTime   *int    `json:"read_time,omitempty"`
	Published  *bool   `json:"published,omitempty"`
	Source     *string `json:"source,omitempty"`
	SourceURL  *string `json:"source_url,omitempty"`
}

type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty" doc:"Derived from name when empty"`
	Description string `json:"description,omitempty"`
}

type Service struct {
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// ListPublished returns published posts, newest first.
func (s *Service) ListPublished(ctx context.Context) ([]Post, error) {
	return s.list(ctx, true)
}

// ListAll includes drafts.
func (s *Service) ListAll(ctx context.Context) ([]Post, error) {
	return s.list(ctx, false)
}

func (s *Service) list(ctx context.Context, publishedOnly bool) ([]Post, error) {
	query := s.db.WithContext(ctx).Preload("Category").Order("created_at DESC")
	if publishedOnly {
		query = query.Where("published = ?", true)
	}

	var posts []Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// GetPublished hides drafts behind the same not-found error as missing posts.
func (s *Service) GetPublished(ctx context.Context, id string) (*Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND published = ?", id, true).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(messagePostNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	return &post, nil
}

func (s *Service) Create(ctx context.Context, in PostInput) (*Post, error) {
	now := s.now()
	post := &Post{
		Title:      strings.TrimSpace(in.Title),
		Excerpt:    strings.TrimSpace(in.Excerpt),
		Content:    strings.TrimSpace(in.Content),
		ImageURL:   optional(in.ImageURL),
		CategoryID: optional(in.CategoryID),
		ReadTime:   in.ReadTime,
		Published:  in.Published == nil || *in.Published,
		Source:     optional(in.Source),
		SourceURL:  optional(in.SourceURL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if post.ReadTime == 0 {
		post.ReadTime = DefaultReadTime
	}

	if err := s.validate(ctx, post); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("Category").Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.logger.Info("blog post created",
		zap.String("post_id", post.ID),
		zap.String("title", post.Title),
		zap.Bool("published", post.Published))

	return s.reload(ctx, post.ID)
}

func (s *Service) Update(ctx context.Context, id string, in PostUpdate) (*Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(messagePostNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	in.apply(&post)
	if err := s.validate(ctx, &post); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&post).
		Select("*").
		Omit("ID", "CreatedAt", "Category").
		Updates(&post)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound(messagePostNotFound)
	}

	s.logger.Info("blog post updated", zap.String("post_id", post.ID))
	return s.reload(ctx, post.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Post{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(messagePostNotFound)
	}

	s.logger.Info("blog post deleted", zap.String("post_id", id))
	return nil
}

// Categories returns every category ordered by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidInput("Category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryName {
		return nil, invalidInput(fmt.Sprintf("Category name must be at most %d characters", maxCategoryName))
	}

	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, invalidInput("Category slug must contain letters or digits")
	}

	description := optional(in.Description)
	if description != nil && utf8.RuneCountInString(*description) > maxCategoryDescLen {
		return nil, invalidInput(fmt.Sprintf("Category description must be at most %d characters", maxCategoryDescLen))
	}

	category := &Category{
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   s.now(),
	}
	err := s.db.WithContext(ctx).Create(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, invalidInput("Category already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("blog category created", zap.String("slug", slug))
	return category, nil
}

func (s *Service) reload(ctx context.Context, id string) (*Post, error) {
	var post Post
	if err := s.db.WithContext(ctx).Preload("Category").Where("id = ?", id).Take(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to reload post %s: %w", id, err)
	}
	return &post, nil
}

func (s *Service) validate(ctx context.Context, p *Post) error {
	if p.Title == "" || p.Excerpt == "" || p.Content == "" {
		return invalidInput(messageFieldsMissing)
	}
	if utf8.RuneCountInString(p.Title) > maxTitleLength {
		return invalidInput(fmt.Sprintf("Title must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(p.Excerpt) > maxExcerptLength {
		return invalidInput(fmt.Sprintf("Excerpt must be at most %d characters", maxExcerptLength))
	}
	if p.ReadTime < 1 || p.ReadTime > MaxReadTime {
		return invalidInput(fmt.Sprintf("Read time must be between 1 and %d minutes", MaxReadTime))
	}
	if p.Source != nil && utf8.RuneCountInString(*p.Source) > maxSourceLength {
		return invalidInput(fmt.Sprintf("Source must be at most %d characters", maxSourceLength))
	}
	if p.ImageURL != nil && !isWebURL(*p.ImageURL) {
		return invalidInput("Image URL must be an http or https URL")
	}
	if p.SourceURL != nil && !isWebURL(*p.SourceURL) {
		return invalidInput("Source URL must be an http or https URL")
	}

	if p.CategoryID != nil {
		var count int64
		err := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", *p.CategoryID).Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check category: %w", err)
		}
		if count == 0 {
			return invalidInput("Unknown category")
		}
	}
	return nil
}

func (u PostUpdate) apply(p *Post) {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*u.Excerpt)
	}
	if u.Content != nil {
		p.Content = strings.TrimSpace(*u.Content)
	}
	if u.ImageURL != nil {
		p.ImageURL = optional(*u.ImageURL)
	}
	if u.CategoryID != nil {
		p.CategoryID = optional(*u.CategoryID)
	}
	if u.ReadTime != nil {
		p.ReadTime = *u.ReadTime
	}
	if u.Published != nil {
		p.Published = *u.Published
	}
	if u.Source != nil {
		p.Source = optional(*u.Source)
	}
	if u.SourceURL != nil {
		p.SourceURL = optional(*u.SourceURL)
	}
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its letter and digit runs with hyphens.
func Slugify(s string) string {
	return strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
