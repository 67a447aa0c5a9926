package api

import (
	"fmt"
	"net/http"

	"github.com/hapogroup/newsletter/config"
	jwtmw "github.com/hapogroup/newsletter/middleware/jwt"
	"github.com/hapogroup/newsletter/middleware/ratelimit"
	"github.com/hapogroup/newsletter/openapi"
	"github.com/hapogroup/newsletter/server"
	"github.com/hapogroup/newsletter/services/auth"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/contact"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/newsletter"
	"github.com/labstack/echo/v4"
)

const (
	bearerScheme = "bearerAuth"

	tagNewsletter = "newsletter"
	tagBlog       = "blog"
	tagAdmin      = "admin"
	tagContact    = "contact"
	tagMeta       = "meta"
)

// Routes carries what route registration needs beyond the handlers.
type Routes struct {
	Handlers *Handlers
	JWT      *jwt.Service
	Limiter  ratelimit.Store
	Config   *config.Config
	Logger   *logging.Service
}

type registrar struct {
	server *server.Server
	doc    *openapi.Document
}

// add mounts the route and starts its documentation entry.
func (r *registrar) add(method, path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) *openapi.RouteBuilder {
	switch method {
	case http.MethodGet:
		r.server.Get(path, handler, m...)
	case http.MethodPost:
		r.server.Post(path, handler, m...)
	case http.MethodPut:
		r.server.Put(path, handler, m...)
	case http.MethodDelete:
		r.server.Delete(path, handler, m...)
	default:
		panic(fmt.Sprintf("api: unsupported route method %s", method))
	}
	return r.doc.Operation(method, path)
}

// NewDocument starts the OpenAPI document that Register fills in.
func NewDocument(cfg *config.Config) *openapi.Document {
	return openapi.New(cfg.App.Name+" API", "1.0.0").
		Description("Newsletter subscriptions, blog, admin broadcast and contact relay.").
		Server(cfg.App.URL, "").
		Tag(tagNewsletter, "Double opt-in subscription lifecycle").
		Tag(tagBlog, "Company blog posts and categories").
		Tag(tagAdmin, "Authenticated administration").
		Tag(tagContact, "Contact form and chatbot leads").
		Tag(tagMeta, "Service metadata").
		BearerAuth(bearerScheme, "Admin access token from /auth/login")
}

// Register mounts every endpoint on srv and documents it in doc.
func Register(srv *server.Server, doc *openapi.Document, rt Routes) {
	h := rt.Handlers
	r := &registrar{server: srv, doc: doc}

	var subscribeLimit, contactLimit, loginLimit []echo.MiddlewareFunc
	if rt.Config.RateLimit.Enabled {
		subscribeLimit = limit(rt, "subscribe")
		contactLimit = limit(rt, "contact")
		loginLimit = limit(rt, "login")
	}
	requireAdmin := jwtmw.RequireJWT(rt.JWT)

	r.add(http.MethodPost, "/newsletter-subscribe", h.Subscribe, subscribeLimit...).
		Summary("Subscribe an email address").
		Description("Creates or reactivates a pending subscription and sends a verification email.").
		Tags(tagNewsletter).
		Body(SubscribeRequest{}, "Address to subscribe").
		Response(http.StatusOK, SubscribeResponse{}, "Subscribed, reactivated or already subscribed").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid email format").
		Response(http.StatusTooManyRequests, server.ErrorResponse{}, "Rate limited").
		Build()

	r.add(http.MethodPost, "/newsletter-verify", h.Verify).
		Summary("Verify a subscription").
		Tags(tagNewsletter).
		Body(VerifyRequest{}, "Token from the verification link").
		Response(http.StatusOK, VerifyResponse{}, "Verified or already verified").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Missing token").
		Response(http.StatusNotFound, server.ErrorResponse{}, "Unknown or consumed token").
		Build()

	r.add(http.MethodPost, "/newsletter-unsubscribe", h.Unsubscribe).
		Summary("Unsubscribe by token or email").
		Tags(tagNewsletter).
		Body(UnsubscribeRequest{}, "Token from an unsubscribe link, or the subscriber's email").
		Response(http.StatusOK, UnsubscribeResponse{}, "Unsubscribed").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Neither email nor token given").
		Response(http.StatusNotFound, server.ErrorResponse{}, "No matching subscriber").
		Build()

	r.add(http.MethodPost, "/newsletter-broadcast", h.Broadcast, requireAdmin).
		Summary("Send a newsletter to every active subscriber").
		Tags(tagNewsletter, tagAdmin).
		Security(bearerScheme).
		Body(BroadcastRequest{}, "Newsletter content").
		Response(http.StatusOK, newsletter.BroadcastResult{}, "Per-recipient delivery report").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Missing subject or content").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodPost, "/auth/login", h.Login, loginLimit...).
		Summary("Obtain an admin access token").
		Tags(tagAdmin).
		Body(LoginRequest{}, "Admin credentials").
		Response(http.StatusOK, auth.Session{}, "Access token").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Missing credentials").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Invalid credentials").
		Build()

	r.add(http.MethodGet, "/newsletter-subscribers", h.ListSubscribers, requireAdmin).
		Summary("List subscribers, newest first").
		Tags(tagAdmin).
		Security(bearerScheme).
		Response(http.StatusOK, SubscribersResponse{}, "Subscribers").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodGet, "/newsletter-stats", h.Stats, requireAdmin).
		Summary("Subscriber counts per state").
		Tags(tagAdmin).
		Security(bearerScheme).
		Response(http.StatusOK, newsletter.Stats{}, "Counts").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodGet, "/blog/posts", h.ListPosts).
		Summary("List published posts, newest first").
		Tags(tagBlog).
		Response(http.StatusOK, PostsResponse{}, "Published posts").
		Build()

	r.add(http.MethodGet, "/blog/posts/:id", h.GetPost).
		Summary("Get a published post").
		Tags(tagBlog).
		Response(http.StatusOK, blog.Post{}, "Post").
		Response(http.StatusNotFound, server.ErrorResponse{}, "Unknown post or draft").
		Build()

	r.add(http.MethodGet, "/blog/categories", h.ListCategories).
		Summary("List categories by name").
		Tags(tagBlog).
		Response(http.StatusOK, CategoriesResponse{}, "Categories").
		Build()

	r.add(http.MethodGet, "/blog/admin/posts", h.ListAllPosts, requireAdmin).
		Summary("List every post including drafts").
		Tags(tagBlog, tagAdmin).
		Security(bearerScheme).
		Response(http.StatusOK, PostsResponse{}, "Posts").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodPost, "/blog/posts", h.CreatePost, requireAdmin).
		Summary("Create a post").
		Tags(tagBlog, tagAdmin).
		Security(bearerScheme).
		Body(blog.PostInput{}, "Post content").
		Response(http.StatusCreated, blog.Post{}, "Created post").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid post").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodPut, "/blog/posts/:id", h.UpdatePost, requireAdmin).
		Summary("Update a post").
		Description("Only the fields present in the body change. An empty string clears an optional field.").
		Tags(tagBlog, tagAdmin).
		Security(bearerScheme).
		Body(blog.PostUpdate{}, "Fields to change").
		Response(http.StatusOK, blog.Post{}, "Updated post").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid post").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Response(http.StatusNotFound, server.ErrorResponse{}, "Unknown post").
		Build()

	r.add(http.MethodDelete, "/blog/posts/:id", h.DeletePost, requireAdmin).
		Summary("Delete a post").
		Tags(tagBlog, tagAdmin).
		Security(bearerScheme).
		Response(http.StatusOK, MessageResponse{}, "Deleted").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Response(http.StatusNotFound, server.ErrorResponse{}, "Unknown post").
		Build()

	r.add(http.MethodPost, "/blog/categories", h.CreateCategory, requireAdmin).
		Summary("Create a category").
		Tags(tagBlog, tagAdmin).
		Security(bearerScheme).
		Body(blog.CategoryInput{}, "Category").
		Response(http.StatusCreated, blog.Category{}, "Created category").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid or duplicate category").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	r.add(http.MethodPost, "/contact", h.Contact, contactLimit...).
		Summary("Relay a contact request or chatbot lead").
		Tags(tagContact).
		Body(contact.Request{}, "Lead details; only request_type is required").
		Response(http.StatusOK, contact.Result{}, "Accepted").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid request").
		Response(http.StatusTooManyRequests, server.ErrorResponse{}, "Rate limited").
		Build()

	r.add(http.MethodGet, "/health", h.Health).
		Summary("Liveness probe").
		Tags(tagMeta).
		Response(http.StatusOK, HealthResponse{}, "Service is up").
		Build()

	r.add(http.MethodGet, "/openapi.json", doc.JSONHandler()).
		Summary("OpenAPI document (JSON)").
		Tags(tagMeta).
		Response(http.StatusOK, nil, "OpenAPI 3 document").
		Build()

	r.add(http.MethodGet, "/openapi.yaml", doc.YAMLHandler()).
		Summary("OpenAPI document (YAML)").
		Tags(tagMeta).
		Response(http.StatusOK, nil, "OpenAPI 3 document").
		Build()
}

func limit(rt Routes, scope string) []echo.MiddlewareFunc {
	cfg := ratelimit.FromConfig(rt.Limiter, &rt.Config.RateLimit, scope, rt.Logger)
	return []echo.MiddlewareFunc{ratelimit.Middleware(cfg)}
}
