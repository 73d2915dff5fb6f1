// Package docs builds the OpenAPI description of the HTTP surface. The
// document is generated once at startup and never changes afterwards.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ObjectKey is where Publish stores the document.
const ObjectKey = "openapi.json"

const bearerAuth = "bearerAuth"

type route struct {
	method  string
	path    string
	tag     string
	summary string
	auth    bool
	paged   bool
	body    string
	status  int
	result  string
}

var routes = []route{
	{http.MethodPost, "/auth/register", "auth", "Register a user", false, false, "RegisterRequest", http.StatusCreated, "AuthResponse"},
	{http.MethodPost, "/auth/login", "auth", "Log in", false, false, "LoginRequest", http.StatusOK, "AuthResponse"},
	{http.MethodGet, "/auth/me", "auth", "Current user", true, false, "", http.StatusOK, "User"},
	{http.MethodPost, "/projects", "projects", "Create a project", true, false, "CreateProjectRequest", http.StatusCreated, "Project"},
	{http.MethodGet, "/projects", "projects", "List own projects", true, true, "", http.StatusOK, "ProjectPage"},
	{http.MethodGet, "/projects/{id}", "projects", "Get a project", true, false, "", http.StatusOK, "Project"},
	{http.MethodPatch, "/projects/{id}", "projects", "Partially update a project", true, false, "UpdateProjectRequest", http.StatusOK, "Project"},
	{http.MethodDelete, "/projects/{id}", "projects", "Delete a project", true, false, "", http.StatusOK, "Message"},
	{http.MethodGet, "/admin/projects", "admin", "List all projects (admin)", true, true, "", http.StatusOK, "AdminProjectPage"},
	{http.MethodDelete, "/admin/projects/{id}", "admin", "Delete any project (admin)", true, false, "", http.StatusOK, "Message"},
	{http.MethodGet, "/health", "meta", "Liveness probe", false, false, "", http.StatusOK, "Health"},
}

// Document is the rendered OpenAPI JSON.
type Document struct {
	raw []byte
}

// New builds and validates the document for the given API version.
func New(version string) (*Document, error) {
	doc := build(version)
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render openapi: %w", err)
	}
	return &Document{raw: raw}, nil
}

// Bytes returns the rendered JSON. Callers must not modify it.
func (d *Document) Bytes() []byte {
	return d.raw
}

func (d *Document) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(d.raw)
}

// Uploader stores an object; satisfied by store.MinioStore.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Publish uploads the document under ObjectKey.
func Publish(ctx context.Context, up Uploader, d *Document) error {
	return up.Upload(ctx, ObjectKey, d.raw, "application/json")
}

func build(version string) *openapi3.T {
	c := newComponents()

	paths := openapi3.NewPaths()
	for _, rt := range routes {
		item := paths.Value(rt.path)
		if item == nil {
			item = &openapi3.PathItem{}
			paths.Set(rt.path, item)
		}
		item.SetOperation(rt.method, c.operation(rt))
	}

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Project Tracker API",
			Version:     version,
			Description: "User accounts with bearer-token sessions and owner-scoped project CRUD.",
		},
		Paths: paths,
		Components: &openapi3.Components{
			Schemas: c.schemas,
			SecuritySchemes: openapi3.SecuritySchemes{
				bearerAuth: &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
	}
}

type components struct {
	schemas openapi3.Schemas
}

// ref points at a registered schema; the value rides along for Validate.
func (c *components) ref(name string) *openapi3.SchemaRef {
	s, ok := c.schemas[name]
	if !ok {
		panic("docs: unknown schema " + name)
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, s.Value)
}

func (c *components) add(name string, s *openapi3.Schema) {
	c.schemas[name] = s.NewRef()
}

func (c *components) operation(rt route) *openapi3.Operation {
	ok := openapi3.NewResponse().
		WithDescription(http.StatusText(rt.status)).
		WithJSONSchema(envelope(c.ref(rt.result)))
	failed := openapi3.NewResponse().
		WithDescription("Error").
		WithJSONSchemaRef(c.ref("ErrorEnvelope"))

	op := &openapi3.Operation{
		Tags:        []string{rt.tag},
		Summary:     rt.summary,
		OperationID: operationID(rt),
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(rt.status, &openapi3.ResponseRef{Value: ok}),
			openapi3.WithName("default", failed),
		),
	}
	if rt.auth {
		op.Security = openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate(bearerAuth))
	}
	if strings.Contains(rt.path, "{id}") {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewUUIDSchema()),
		})
	}
	if rt.paged {
		op.Parameters = append(op.Parameters,
			&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("limit").
				WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithMax(50).WithDefault(10))},
			&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("offset").
				WithSchema(openapi3.NewIntegerSchema().WithMin(0).WithDefault(0))},
		)
	}
	if rt.body != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(c.ref(rt.body)),
		}
	}
	return op
}

// operationID turns "PATCH /projects/{id}" into "patchProjectsId".
func operationID(rt route) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(rt.method))
	for _, part := range strings.FieldsFunc(rt.path, func(r rune) bool { return r == '/' || r == '{' || r == '}' }) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

func envelope(data *openapi3.SchemaRef) *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema().WithEnum(true)).
		WithPropertyRef("data", data).
		WithRequired([]string{"success", "data"})
}

func object(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema().WithProperties(props)
	if len(required) > 0 {
		s.Required = required
	}
	return s
}

func statusSchema() *openapi3.Schema {
	return openapi3.NewStringSchema().WithEnum("todo", "doing", "done")
}

func projectProps() map[string]*openapi3.Schema {
	return map[string]*openapi3.Schema{
		"id":          openapi3.NewUUIDSchema(),
		"title":       openapi3.NewStringSchema(),
		"description": openapi3.NewStringSchema().WithNullable(),
		"status":      statusSchema(),
		"owner_id":    openapi3.NewUUIDSchema(),
		"created_at":  openapi3.NewDateTimeSchema(),
		"updated_at":  openapi3.NewDateTimeSchema(),
	}
}

func page(item *openapi3.SchemaRef) *openapi3.Schema {
	items := openapi3.NewArraySchema()
	items.Items = item
	return object([]string{"items", "total", "limit", "offset"}, map[string]*openapi3.Schema{
		"items":  items,
		"total":  openapi3.NewIntegerSchema(),
		"limit":  openapi3.NewIntegerSchema(),
		"offset": openapi3.NewIntegerSchema(),
	})
}

func newComponents() *components {
	c := &components{schemas: openapi3.Schemas{}}
	email := func() *openapi3.Schema { return openapi3.NewStringSchema().WithFormat("email") }

	c.add("User", object([]string{"id", "name", "email", "role"}, map[string]*openapi3.Schema{
		"id":         openapi3.NewUUIDSchema(),
		"name":       openapi3.NewStringSchema(),
		"email":      email(),
		"role":       openapi3.NewStringSchema().WithEnum("user", "admin"),
		"created_at": openapi3.NewDateTimeSchema(),
		"updated_at": openapi3.NewDateTimeSchema(),
	}))
	c.add("OwnerSummary", object([]string{"id", "name", "email"}, map[string]*openapi3.Schema{
		"id":    openapi3.NewUUIDSchema(),
		"name":  openapi3.NewStringSchema(),
		"email": email(),
	}))
	c.add("Project", object([]string{"id", "title", "status", "owner_id"}, projectProps()))

	withOwner := object([]string{"id", "title", "status", "owner_id", "owner"}, projectProps())
	withOwner.WithPropertyRef("owner", c.ref("OwnerSummary"))
	c.add("ProjectWithOwner", withOwner)

	c.add("ProjectPage", page(c.ref("Project")))
	c.add("AdminProjectPage", page(c.ref("ProjectWithOwner")))

	auth := object([]string{"user", "token"}, map[string]*openapi3.Schema{"token": openapi3.NewStringSchema()})
	auth.WithPropertyRef("user", c.ref("User"))
	c.add("AuthResponse", auth)

	c.add("RegisterRequest", object([]string{"name", "email", "password"}, map[string]*openapi3.Schema{
		"name":     openapi3.NewStringSchema().WithMinLength(2).WithMaxLength(100),
		"email":    email().WithMaxLength(255),
		"password": openapi3.NewStringSchema().WithMinLength(8).WithMaxLength(72),
	}))
	c.add("LoginRequest", object([]string{"email", "password"}, map[string]*openapi3.Schema{
		"email":    email(),
		"password": openapi3.NewStringSchema(),
	}))
	c.add("CreateProjectRequest", object([]string{"title"}, map[string]*openapi3.Schema{
		"title":       openapi3.NewStringSchema().WithMinLength(3).WithMaxLength(200),
		"description": openapi3.NewStringSchema().WithMaxLength(2000),
		"status":      statusSchema(),
	}))
	// Every field is optional.
	c.add("UpdateProjectRequest", object(nil, map[string]*openapi3.Schema{
		"title":       openapi3.NewStringSchema().WithMinLength(3).WithMaxLength(200),
		"description": openapi3.NewStringSchema().WithMaxLength(2000),
		"status":      statusSchema(),
	}))
	c.add("Message", object([]string{"message"}, map[string]*openapi3.Schema{"message": openapi3.NewStringSchema()}))
	c.add("Health", object([]string{"status"}, map[string]*openapi3.Schema{"status": openapi3.NewStringSchema()}))

	detail := object([]string{"field", "message"}, map[string]*openapi3.Schema{
		"field":   openapi3.NewStringSchema(),
		"message": openapi3.NewStringSchema(),
	})
	apiErr := object([]string{"code", "message"}, map[string]*openapi3.Schema{
		"code": openapi3.NewStringSchema().WithEnum(
			"VALIDATION_ERROR", "UNAUTHORIZED", "FORBIDDEN", "NOT_FOUND",
			"CONFLICT", "RATE_LIMIT_EXCEEDED", "INTERNAL_ERROR",
		),
		"message": openapi3.NewStringSchema(),
		"details": openapi3.NewArraySchema().WithItems(detail),
	})
	c.add("ErrorEnvelope", object([]string{"success", "error"}, map[string]*openapi3.Schema{
		"success": openapi3.NewBoolSchema().WithEnum(false),
		"error":   apiErr,
	}))
	return c
}
