// Package openapi builds the service's OpenAPI 3 document from Go types and
// serves it as JSON or YAML.
package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

const componentPrefix = "#/components/schemas/"

type Document struct {
	mu   sync.RWMutex
	spec *openapi3.T
	// type key -> component name
	components map[string]string
}

func New(title, version string) *Document {
	return &Document{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths: openapi3.NewPaths(),
			Components: &openapi3.Components{
				Schemas:         make(openapi3.Schemas),
				SecuritySchemes: make(openapi3.SecuritySchemes),
			},
		},
		components: make(map[string]string),
	}
}

func (d *Document) Description(desc string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Info.Description = desc
	return d
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

func (d *Document) BearerAuth(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  description,
		},
	}
	return d
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

// Validate checks the document against the OpenAPI 3 rules.
func (d *Document) Validate(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec.Validate(ctx)
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

// Operation starts documenting method and path. Echo path parameters such
// as :id become {id} and are declared as required string parameters. Call
// Build to add the operation.
func (d *Document) Operation(method, path string) *RouteBuilder {
	docPath, params := pathParams(path)
	op := &openapi3.Operation{Responses: openapi3.NewResponses()}
	for _, name := range params {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}

	return &RouteBuilder{
		doc:       d,
		method:    strings.ToUpper(method),
		path:      docPath,
		operation: op,
	}
}

func pathParams(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, segment := range segments {
		if name, ok := strings.CutPrefix(segment, ":"); ok && name != "" {
			params = append(params, name)
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

func (d *Document) addOperation(method, path string, op *openapi3.Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item := d.spec.Paths.Find(path)
	if item == nil {
		item = &openapi3.PathItem{}
		d.spec.Paths.Set(path, item)
	}
	item.SetOperation(method, op)
}

// schemaFor returns a schema for example's type, registering named structs
// as components so they are emitted once and referenced everywhere else.
func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	if example == nil {
		return objectSchema()
	}
	return d.schemaForType(reflect.TypeOf(example), map[reflect.Type]bool{})
}

var timeType = reflect.TypeOf(time.Time{})

func (d *Document) schemaForType(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.Pointer:
		inner := d.schemaForType(t.Elem(), visiting)
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}}
		}
		inner.Value.Nullable = true
		return inner
	case reflect.String:
		return typed("string")
	case reflect.Bool:
		return typed("boolean")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typed("integer")
	case reflect.Float32, reflect.Float64:
		return typed("number")
	case reflect.Slice, reflect.Array:
		s := typed("array")
		s.Value.Items = d.schemaForType(t.Elem(), visiting)
		return s
	case reflect.Map:
		s := objectSchema()
		s.Value.AdditionalProperties = openapi3.AdditionalProperties{Schema: d.schemaForType(t.Elem(), visiting)}
		return s
	case reflect.Struct:
		if t == timeType {
			s := typed("string")
			s.Value.Format = "date-time"
			return s
		}
		return d.structRef(t, visiting)
	default:
		return objectSchema()
	}
}

func (d *Document) structRef(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if t.Name() == "" {
		return &openapi3.SchemaRef{Value: d.structSchema(t, visiting)}
	}

	key := t.PkgPath() + "." + t.Name()
	if name, ok := d.components[key]; ok {
		return &openapi3.SchemaRef{Ref: componentPrefix + name}
	}
	if visiting[t] {
		return objectSchema()
	}

	name := d.componentName(t)
	d.components[key] = name
	d.spec.Components.Schemas[name] = &openapi3.SchemaRef{Value: d.structSchema(t, visiting)}
	return &openapi3.SchemaRef{Ref: componentPrefix + name}
}

// componentName qualifies clashing type names with their package name,
// e.g. newsletter.Stats and admin.Stats.
func (d *Document) componentName(t reflect.Type) string {
	name := t.Name()
	if _, taken := d.spec.Components.Schemas[name]; !taken {
		return name
	}
	pkg := t.PkgPath()
	if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[i+1:]
	}
	return strings.ToUpper(pkg[:1]) + pkg[1:] + name
}

func (d *Document) structSchema(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.Schema {
	visiting[t] = true
	defer delete(visiting, t)

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		prop := d.schemaForType(field.Type, visiting)
		if doc := field.Tag.Get("doc"); doc != "" {
			if prop.Ref != "" {
				prop = &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{prop}}}
			}
			prop.Value.Description = doc
		}
		if example := field.Tag.Get("example"); example != "" && prop.Value != nil {
			prop.Value.Example = example
		}
		schema.Properties[name] = prop

		if !strings.Contains(opts, "omitempty") && field.Type.Kind() != reflect.Pointer {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

func typed(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{name}}}
}

func objectSchema() *openapi3.SchemaRef {
	return typed("object")
}
