// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry with activities sorted by id and stamps LastUpdated.
func (r *ActivityRegistry) Save(path string, now time.Time) error {
	sort.Slice(r.Activities, func(i, j int) bool { return r.Activities[i].ID < r.Activities[j].ID })
	r.LastUpdated = now.UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *ActivityRegistry) Find(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

func (r *ActivityRegistry) Add(a Activity) error {
	if _, exists := r.Find(a.ID); exists {
		return fmt.Errorf("activity with ID %s already exists", a.ID)
	}
	r.Activities = append(r.Activities, a)
	return nil
}

// Validate checks every activity for required fields, a known status, a
// parseable timeout and a compilable input schema. When served is non-empty
// each activity's task type must be in it and each served type must be listed.
func (r *ActivityRegistry) Validate(served []string) error {
	var problems []string
	seen := map[string]bool{}
	tasks := map[string]bool{}

	for _, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" || a.DisplayName == "" {
			problems = append(problems, fmt.Sprintf("activity %q: id, taskType and displayName are required", a.ID))
			continue
		}
		if seen[a.ID] {
			problems = append(problems, fmt.Sprintf("activity %q: duplicate id", a.ID))
		}
		seen[a.ID] = true
		tasks[a.TaskType] = true

		if !validStatus(a.ImplementationStatus) {
			problems = append(problems, fmt.Sprintf("activity %q: unknown status %q", a.ID, a.ImplementationStatus))
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				problems = append(problems, fmt.Sprintf("activity %q: bad timeout %q", a.ID, a.Timeout))
			}
		}
		if len(a.InputSchema) > 0 {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema)); err != nil {
				problems = append(problems, fmt.Sprintf("activity %q: input schema: %v", a.ID, err))
			}
		}
	}

	if len(served) > 0 {
		known := map[string]bool{}
		for _, t := range served {
			known[t] = true
			if !tasks[t] {
				problems = append(problems, fmt.Sprintf("task type %q is served but not registered", t))
			}
		}
		for t := range tasks {
			if !known[t] {
				problems = append(problems, fmt.Sprintf("task type %q is registered but not served", t))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%d problem(s):\n  %s", len(problems), strings.Join(problems, "\n  "))
	}
	return nil
}

func validStatus(s string) bool {
	for _, v := range ImplementationStatuses {
		if v == s {
			return true
		}
	}
	return false
}
