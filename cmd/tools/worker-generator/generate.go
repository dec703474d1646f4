package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"template-engine/pkg/registry"
)

// WorkerData is what the file templates see.
type WorkerData struct {
	PackageName string
	TaskType    string
	Method      string
	Description string
	Fields      []Field
	SchemaJSON  string
}

type Field struct {
	Name    string
	GoType  string
	JSONTag string
}

// NewWorkerData derives template data from a registry activity.
func NewWorkerData(a registry.Activity) (WorkerData, error) {
	schema := a.InputSchema
	if len(schema) == 0 {
		schema = map[string]interface{}{"type": "object"}
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return WorkerData{}, fmt.Errorf("encode input schema: %w", err)
	}
	if strings.Contains(string(raw), "`") {
		return WorkerData{}, fmt.Errorf("input schema for %s contains a backtick", a.ID)
	}

	return WorkerData{
		PackageName: strings.ReplaceAll(a.ID, "-", ""),
		TaskType:    a.TaskType,
		Method:      camel(a.ID),
		Description: a.Description,
		Fields:      fieldsFromSchema(schema),
		SchemaJSON:  string(raw),
	}, nil
}

func fieldsFromSchema(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		fields = append(fields, Field{
			Name:    camel(name),
			GoType:  goTypeFromJSONType(details["type"]),
			JSONTag: fmt.Sprintf("`json:\"%s\"`", name),
		})
	}
	return fields
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	}
	return "interface{}"
}

// camel turns "template-id" and "templateId" into "TemplateID"-style names.
func camel(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	out := b.String()
	if strings.HasSuffix(out, "Id") {
		out = strings.TrimSuffix(out, "Id") + "ID"
	}
	return out
}

var files = map[string]*template.Template{
	"models.go":       template.Must(template.New("models").Parse(modelsTemplate)),
	"handler.go":      template.Must(template.New("handler").Parse(handlerTemplate)),
	"handler_test.go": template.Must(template.New("test").Parse(testTemplate)),
}

// Generate writes a worker package for a into dir and returns the written
// paths. Existing files are left alone unless force is set.
func Generate(a registry.Activity, dir string, force bool) ([]string, error) {
	data, err := NewWorkerData(a)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil && !force {
			return written, fmt.Errorf("%s exists; use --force to overwrite", path)
		}

		var buf bytes.Buffer
		if err := files[name].Execute(&buf, data); err != nil {
			return written, fmt.Errorf("render %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return written, fmt.Errorf("format %s: %w", name, err)
		}
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
{{- range .Fields }}
	{{ .Name }} {{ .GoType }} {{ .JSONTag }}
{{- end }}
}

type Output struct {
}

const inputSchemaJSON = ` + "`{{ .SchemaJSON }}`" + `
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"fmt"

	"template-engine/internal/common/config"
	"template-engine/internal/common/logger"
	"template-engine/internal/common/observability"
	"template-engine/internal/common/validation"
	"template-engine/internal/workers/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "{{ .TaskType }}"

var inputSchema = validation.MustCompile(inputSchemaJSON)

{{ if .Description }}// Service {{ .Description }}
{{ end -}}
type Service interface {
	{{ .Method }}(ctx context.Context, input *Input) (*Output, error)
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Service       Service
	CustomConfig  *templates.WorkerConfig
	Logger        logger.Logger
	Observability *observability.Observability
}

type Handler struct {
	config  *templates.WorkerConfig
	service Service
	runner  *templates.Runner
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := templates.ConfigFor(TaskType, opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: service is required", TaskType)
	}
	return &Handler{
		config:  cfg,
		service: opts.Service,
		runner:  templates.NewRunner(TaskType, inputSchema, cfg, opts.Logger, opts.Observability),
	}, nil
}

func (h *Handler) Config() *templates.WorkerConfig { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context, vars map[string]interface{}) (interface{}, error) {
		var input Input
		if err := templates.Decode(vars, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.{{ .Method }}(ctx, input)
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"template-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct{}

func (stubService) {{ .Method }}(_ context.Context, _ *Input) (*Output, error) {
	return &Output{}, nil
}

func TestNewHandler_RequiresService(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Logger: logger.NewTestLogger(t)})
	assert.Error(t, err)
}

func TestHandler_Execute(t *testing.T) {
	h, err := NewHandler(HandlerOptions{Service: stubService{}, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotNil(t, out)
}
`
