package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd := pflag.NewFlagSet("validate", pflag.ExitOnError)
		catalogFile := validateCmd.String("catalog", "", "threshold catalog YAML file")
		validateCmd.Parse(os.Args[2:])

		if *catalogFile == "" {
			fmt.Fprintln(os.Stderr, "Error: --catalog flag is required")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*catalogFile, os.Stdout, os.Stderr))

	case "defaults":
		defaultsCmd := pflag.NewFlagSet("defaults", pflag.ExitOnError)
		out := defaultsCmd.StringP("output", "o", "", "write to file instead of stdout")
		defaultsCmd.Parse(os.Args[2:])
		os.Exit(runDefaults(*out, os.Stdout, os.Stderr))

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: aegis-cli <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate --catalog <file>   Validate a threshold catalog file")
	fmt.Println("  defaults [-o <file>]        Print the built-in threshold catalog as YAML")
	fmt.Println()
}

func runValidate(path string, stdout, stderr io.Writer) int {
	validator, err := threshold.NewValidator()
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	errs := validator.ValidateFile(path)
	if len(errs) == 0 {
		fmt.Fprintln(stdout, "✓ Threshold catalog is valid")
		return 0
	}

	fmt.Fprintf(stderr, "✗ Validation failed with %d error(s):\n\n", len(errs))
	for _, e := range errs {
		if e.Path != "" {
			fmt.Fprintf(stderr, "%s: %s: %s\n", filepath.Base(e.File), e.Path, e.Message)
		} else {
			fmt.Fprintf(stderr, "%s: %s\n", filepath.Base(e.File), e.Message)
		}
	}

	return 1
}

func runDefaults(path string, stdout, stderr io.Writer) int {
	data, err := threshold.Marshal(threshold.DefaultSpecs())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if path == "" {
		stdout.Write(data)
		return 0
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
