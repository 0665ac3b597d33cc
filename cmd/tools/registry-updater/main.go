// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"product-research-workers/pkg/registry"
)

const defaultRegistryPath = "pkg/registry/activities.json"

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	generatePath := generateCmd.String("path", defaultRegistryPath, "Path to registry file")
	generateVersion := generateCmd.String("version", "1.0.0", "Registry version")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])
		n, err := generate(*generatePath, *generateVersion, time.Now())
		if err != nil {
			fmt.Printf("Error generating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d activities to %s\n", n, *generatePath)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value, time.Now()); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "help":
		fallthrough
	default:
		help()
	}
}

// generate merges the catalog into the registry at path. Fields edited by
// hand (status, tags, workflows) survive for activities that already exist.
func generate(path, version string, now time.Time) (int, error) {
	activities, err := Catalog()
	if err != nil {
		return 0, err
	}

	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, fmt.Errorf("failed to load registry: %w", err)
		}
		reg = registry.New(version, now)
	}
	reg.Version = version

	for _, a := range activities {
		if existing, ok := reg.Find(a.ID); ok {
			a.ImplementationStatus = existing.ImplementationStatus
			if len(existing.Tags) > 0 {
				a.Tags = existing.Tags
			}
			if len(existing.Workflows) > 0 {
				a.Workflows = existing.Workflows
			}
		}
		reg.Upsert(a, now)
	}

	if err := reg.Validate(); err != nil {
		return 0, err
	}
	return len(activities), reg.Save(path)
}

func updateActivity(path, id, field, value string, now time.Time) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity, found := reg.Find(id)
	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "category":
		activity.Category = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = now.UTC().Format(time.RFC3339)
	return reg.Save(path)
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  generate Write every worker of this repository into the registry
  update   Update an existing activity's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater generate
  registry-updater update -id search-products -field timeout -value 15m
  registry-updater validate -path pkg/registry/activities.json

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
