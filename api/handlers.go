// Package api exposes the newsletter, blog, admin and contact operations over HTTP.
package api

import (
	"net/http"
	"strings"

	"github.com/hapogroup/newsletter/config"
	jwtmw "github.com/hapogroup/newsletter/middleware/jwt"
	"github.com/hapogroup/newsletter/services/auth"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/contact"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/newsletter"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const MessageInvalidBody = "Invalid request body"

type SubscribeRequest struct {
	Email string `json:"email" example:"reader@example.com"`
}

type SubscribeResponse struct {
	Message           string `json:"message" example:"Subscription successful. Please check your email to verify."`
	VerificationToken string `json:"verification_token,omitempty" doc:"Returned only when NEWSLETTER_RETURN_TOKEN is enabled"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type VerifyResponse struct {
	Message string `json:"message" example:"Email verified successfully!"`
	Email   string `json:"email"`
}

type UnsubscribeRequest struct {
	Email string `json:"email,omitempty"`
	Token string `json:"token,omitempty" doc:"Preferred over email when both are given"`
}

type UnsubscribeResponse struct {
	Message string `json:"message" example:"Successfully unsubscribed from newsletter"`
	Email   string `json:"email"`
}

type BroadcastRequest struct {
	Subject     string `json:"subject"`
	Content     string `json:"content" doc:"Plain text body"`
	HTMLContent string `json:"html_content,omitempty" doc:"Defaults to content"`
	SenderName  string `json:"sender_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SubscribersResponse struct {
	Subscribers []newsletter.Subscriber `json:"subscribers"`
}

type PostsResponse struct {
	Posts []blog.Post `json:"posts"`
}

type CategoriesResponse struct {
	Categories []blog.Category `json:"categories"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type Handlers struct {
	newsletter *newsletter.Service
	blog       *blog.Service
	contact    *contact.Service
	auth       *auth.Service
	config     *config.Config
	logger     *logging.Service
}

func NewHandlers(newsletterSvc *newsletter.Service, blogSvc *blog.Service, contactSvc *contact.Service, authSvc *auth.Service, cfg *config.Config, logger *logging.Service) *Handlers {
	return &Handlers{
		newsletter: newsletterSvc,
		blog:       blogSvc,
		contact:    contactSvc,
		auth:       authSvc,
		config:     cfg,
		logger:     logger,
	}
}

func (h *Handlers) Subscribe(c echo.Context) error {
	var req SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	result, err := h.newsletter.Subscribe(c.Request().Context(), newsletter.SubscribeRequest{
		Email:     req.Email,
		Origin:    h.origin(c),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	resp := SubscribeResponse{Message: result.Message}
	if h.config.Newsletter.ReturnToken {
		resp.VerificationToken = result.VerificationToken
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	result, err := h.newsletter.Verify(c.Request().Context(), req.Token)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, VerifyResponse{Message: result.Message, Email: result.Email})
}

func (h *Handlers) Unsubscribe(c echo.Context) error {
	var req UnsubscribeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	result, err := h.newsletter.Unsubscribe(c.Request().Context(), req.Email, req.Token)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, UnsubscribeResponse{Message: result.Message, Email: result.Email})
}

func (h *Handlers) Broadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	h.logger.Info("newsletter broadcast requested",
		zap.String("admin", jwtmw.GetSubject(c)),
		zap.String("subject", req.Subject))

	result, err := h.newsletter.Broadcast(c.Request().Context(), newsletter.BroadcastRequest{
		Subject:     req.Subject,
		Content:     req.Content,
		HTMLContent: req.HTMLContent,
		SenderName:  req.SenderName,
		Origin:      h.origin(c),
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	session, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handlers) ListSubscribers(c echo.Context) error {
	subs, err := h.newsletter.List(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	if subs == nil {
		subs = []newsletter.Subscriber{}
	}
	return c.JSON(http.StatusOK, SubscribersResponse{Subscribers: subs})
}

func (h *Handlers) Stats(c echo.Context) error {
	stats, err := h.newsletter.Stats(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handlers) ListPosts(c echo.Context) error {
	posts, err := h.blog.ListPublished(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, postsResponse(posts))
}

func (h *Handlers) GetPost(c echo.Context) error {
	post, err := h.blog.GetPublished(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *Handlers) ListCategories(c echo.Context) error {
	categories, err := h.blog.Categories(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	if categories == nil {
		categories = []blog.Category{}
	}
	return c.JSON(http.StatusOK, CategoriesResponse{Categories: categories})
}

// ListAllPosts is the admin view and includes drafts.
func (h *Handlers) ListAllPosts(c echo.Context) error {
	posts, err := h.blog.ListAll(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, postsResponse(posts))
}

func (h *Handlers) CreatePost(c echo.Context) error {
	var req blog.PostInput
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	post, err := h.blog.Create(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	h.logger.Info("blog post created by admin",
		zap.String("admin", jwtmw.GetSubject(c)), zap.String("post_id", post.ID))
	return c.JSON(http.StatusCreated, post)
}

func (h *Handlers) UpdatePost(c echo.Context) error {
	var req blog.PostUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	post, err := h.blog.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *Handlers) DeletePost(c echo.Context) error {
	id := c.Param("id")
	if err := h.blog.Delete(c.Request().Context(), id); err != nil {
		return h.errorResponse(c, err)
	}
	h.logger.Info("blog post deleted by admin",
		zap.String("admin", jwtmw.GetSubject(c)), zap.String("post_id", id))
	return c.JSON(http.StatusOK, MessageResponse{Message: blog.MessagePostDeleted})
}

func (h *Handlers) CreateCategory(c echo.Context) error {
	var req blog.CategoryInput
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	category, err := h.blog.CreateCategory(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, category)
}

func postsResponse(posts []blog.Post) PostsResponse {
	if posts == nil {
		posts = []blog.Post{}
	}
	return PostsResponse{Posts: posts}
}

func (h *Handlers) Contact(c echo.Context) error {
	var req contact.Request
	if err := c.Bind(&req); err != nil {
		return badRequest(MessageInvalidBody)
	}

	result, err := h.contact.Relay(c.Request().Context(), req, c.Request().UserAgent())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// origin returns the caller's Origin header when it is explicitly listed in
// the CORS allowlist, so links in outgoing mail point back at the site the
// request came from. A wildcard allowlist never lets callers pick the link
// host; the configured site URL is used downstream instead.
func (h *Handlers) origin(c echo.Context) string {
	origin := strings.TrimRight(c.Request().Header.Get(echo.HeaderOrigin), "/")
	if origin == "" {
		return ""
	}
	for _, allowed := range h.config.CORS.AllowOrigins {
		if allowed != "*" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
