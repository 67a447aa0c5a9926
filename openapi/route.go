package openapi

import (
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(rb.doc.schemaFor(example)),
	}
	return rb
}

// Response documents a JSON response. A nil example documents a bodiless one.
func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	response := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		response.WithJSONSchemaRef(rb.doc.schemaFor(example))
	}
	rb.operation.AddResponse(statusCode, response)
	return rb
}

// Security requires any one of the named schemes.
func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		rb.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return rb
}

func (rb *RouteBuilder) Build() {
	if rb.operation.OperationID == "" {
		rb.operation.OperationID = operationID(rb.method, rb.path)
	}
	if rb.operation.Responses.Len() == 0 {
		rb.operation.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription(http.StatusText(http.StatusOK)))
	}
	rb.doc.addOperation(rb.method, rb.path, rb.operation)
}

// operationID derives "postNewsletterSubscribe" from POST /newsletter-subscribe
// and "putBlogPostsId" from PUT /blog/posts/{id}.
func operationID(method, path string) string {
	out := []byte(strings.ToLower(method))
	upperNext := true
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '/' || c == '-' || c == '_' || c == '.' || c == '{' || c == '}':
			upperNext = true
		case upperNext && c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
			upperNext = false
		default:
			out = append(out, c)
			upperNext = false
		}
	}
	return string(out)
}
