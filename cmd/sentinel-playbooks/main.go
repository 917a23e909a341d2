// Package main provides a CLI tool for validating Orion Sentinel playbook files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"orion-sentinel/internal/playbook"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "list":
		runListCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("sentinel-playbooks %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: sentinel-playbooks <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate  Validate playbook YAML files or directories\n")
	fmt.Fprintf(os.Stderr, "  list      List playbooks found in files or directories\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func runValidateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show detailed playbook information")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel-playbooks validate [--verbose] <path> [<path>...]\n")
		os.Exit(1)
	}

	os.Exit(runValidate(paths, *verbose))
}

func runListCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	enabledOnly := fs.Bool("enabled-only", false, "List enabled playbooks only")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"configs"}
	}

	os.Exit(runList(paths, *enabledOnly))
}

func runValidate(paths []string, verbose bool) int {
	var totalFiles, validFiles, invalidFiles int

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			invalidFiles++
			continue
		}

		if info.IsDir() {
			files, err := collectYAMLFiles(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading directory %s: %v\n", path, err)
				invalidFiles++
				continue
			}
			for _, f := range files {
				totalFiles++
				if validateFile(f, verbose) {
					validFiles++
				} else {
					invalidFiles++
				}
			}
		} else {
			totalFiles++
			if validateFile(path, verbose) {
				validFiles++
			} else {
				invalidFiles++
			}
		}
	}

	fmt.Printf("\nResults: %d files checked, %d valid, %d invalid\n", totalFiles, validFiles, invalidFiles)

	if invalidFiles > 0 {
		return 1
	}
	return 0
}

func validateFile(path string, verbose bool) bool {
	playbooks, err := loadFile(path)
	if err != nil {
		fmt.Printf("  FAIL  %s: %v\n", path, err)
		return false
	}

	fmt.Printf("  OK    %s (%d playbook(s))\n", path, len(playbooks))

	if verbose {
		for _, pb := range playbooks {
			fmt.Printf("        - [%s] %s (event_type=%s, priority=%d, enabled=%t)\n",
				pb.ID, pb.Name, pb.MatchEventType, pb.Priority, pb.Enabled)
			if len(pb.Conditions) > 0 {
				var conds []string
				for _, c := range pb.Conditions {
					conds = append(conds, fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value))
				}
				fmt.Printf("          conditions: %s\n", strings.Join(conds, "; "))
			}
			for _, a := range pb.Actions {
				fmt.Printf("          action: %s\n", a.Type)
			}
			if pb.DryRun {
				fmt.Printf("          dry_run: true\n")
			}
		}
	}

	return true
}

func runList(paths []string, enabledOnly bool) int {
	for _, path := range paths {
		files, err := collectYAMLFiles(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			continue
		}

		for _, f := range files {
			playbooks, err := loadFile(f)
			if err != nil {
				continue
			}
			for _, pb := range playbooks {
				if enabledOnly && !pb.Enabled {
					continue
				}
				state := "enabled"
				if !pb.Enabled {
					state = "disabled"
				}
				fmt.Printf("%-40s  %-20s  prio=%-3d  %-8s  %s\n",
					pb.ID, pb.MatchEventType, pb.Priority, state, pb.Name)
			}
		}
	}
	return 0
}

// loadFile parses one playbook file through a throwaway store so the
// same validation rules apply as at service startup.
func loadFile(path string) ([]*playbook.Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	store := playbook.NewStore(path)
	if _, err := store.LoadBytes(data); err != nil {
		return nil, err
	}
	return store.List(false), nil
}

func collectYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
