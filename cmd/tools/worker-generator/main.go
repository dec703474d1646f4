// cmd/tools/worker-generator/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"template-engine/pkg/registry"
)

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., publish-version)")
	outputDir := flag.String("output", "./internal/workers/templates/", "Parent directory for the generated worker package")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator --activity <id> [--output <dir>] [--registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run ./cmd/tools/worker-generator --activity render-preview")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}
	a, ok := reg.Find(*activity)
	if !ok {
		fmt.Printf("Error: activity %s not found in registry\n", *activity)
		os.Exit(1)
	}

	dir := filepath.Join(*outputDir, a.ID)
	written, err := Generate(*a, dir, *force)
	if err != nil {
		fmt.Printf("Error generating worker: %v\n", err)
		os.Exit(1)
	}
	for _, f := range written {
		fmt.Printf("wrote %s\n", f)
	}
	fmt.Printf("\nRegister %s in cmd/template-engine/main.go and add it to the registry-updater's served task types.\n", a.TaskType)
}
