// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"template-engine/pkg/registry"

	at "template-engine/internal/workers/templates/archive-template"
	ct "template-engine/internal/workers/templates/create-template"
	et "template-engine/internal/workers/templates/execute-template"
	gt "template-engine/internal/workers/templates/get-template"
	lt "template-engine/internal/workers/templates/list-templates"
	pv "template-engine/internal/workers/templates/publish-version"
	sv "template-engine/internal/workers/templates/save-version"
)

// servedTaskTypes are the job types cmd/template-engine opens workers for.
var servedTaskTypes = []string{
	ct.TaskType, sv.TaskType, pv.TaskType, at.TaskType,
	et.TaskType, lt.TaskType, gt.TaskType,
}

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	var registryPath string
	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/activity-registry.json", "Path to registry file")
	}

	idAdd := addCmd.String("id", "", "Activity ID (e.g., publish-version)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Publish Version)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "templates", "Category")
	taskType := addCmd.String("taskType", "", "Zeebe job type (defaults to id)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, verified)")

	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, description)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" {
			fmt.Println("Error: id and displayName are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		tt := *taskType
		if tt == "" {
			tt = *idAdd
		}
		err = addActivity(registryPath, registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             tt,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{},
			OutputSchema:         map[string]interface{}{},
			ErrorCodes:           []string{},
			Timeout:              "10s",
			Workflows:            []string{},
			Tags:                 []string{},
		})
		if err == nil {
			fmt.Printf("Added activity: %s\n", *idAdd)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateActivity(registryPath, *idUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(registryPath)
		if err == nil {
			fmt.Println("Registry validation passed.")
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		reg, err = &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Add(activity); err != nil {
		return err
	}
	return reg.Save(path, time.Now())
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	a, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "timeout":
		a.Timeout = value
	case "description":
		a.Description = value
	case "retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("retries must be an integer: %w", err)
		}
		a.Retries = n
	default:
		return fmt.Errorf("unsupported field: %s", field)
	}
	return reg.Save(path, time.Now())
}

func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	return reg.Validate(servedTaskTypes)
}

func help() {
	fmt.Println(`Usage: registry-updater <command> [flags]

Commands:
  add       Add a new activity
  update    Update a field of an existing activity
  validate  Check the registry against the served job types`)
}
