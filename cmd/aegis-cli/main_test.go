package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunDefaults_ThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	var stdout, stderr bytes.Buffer
	if code := runDefaults(path, &stdout, &stderr); code != 0 {
		t.Fatalf("defaults exited %d: %s", code, stderr.String())
	}

	stdout.Reset()
	if code := runValidate(path, &stdout, &stderr); code != 0 {
		t.Fatalf("validate exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "valid") {
		t.Errorf("unexpected output: %q", stdout.String())
	}
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `apiVersion: aegis/v1
kind: ThresholdCatalog
thresholds:
  - domain: NFR-01
    metric: p95_latency_ms
    target: 100
    warning: 90
    critical: 120
    direction: lower_is_better
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := runValidate(path, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "bad.yaml") {
		t.Errorf("expected file name in errors, got %q", stderr.String())
	}
}

func TestRunDefaults_Stdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runDefaults("", &stdout, &stderr); code != 0 {
		t.Fatalf("defaults exited %d", code)
	}
	if !strings.Contains(stdout.String(), "ThresholdCatalog") {
		t.Errorf("expected catalog kind in output")
	}
}
