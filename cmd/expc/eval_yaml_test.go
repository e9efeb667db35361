package main

import (
	"fmt"
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// EvalSpec represents a test case from eval.yaml
type EvalSpec struct {
	Name   string `yaml:"name"`
	Input  string `yaml:"input"`
	Answer int64  `yaml:"answer"`
}

// EvalFile represents the eval.yaml file structure
type EvalFile struct {
	Tests []EvalSpec `yaml:"tests"`
}

func loadEvalSpecs(t *testing.T) []EvalSpec {
	t.Helper()
	data, err := os.ReadFile("../../testdata/eval.yaml")
	if err != nil {
		t.Fatalf("failed to read eval.yaml: %v", err)
	}
	var file EvalFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("failed to parse eval.yaml: %v", err)
	}
	return file.Tests
}

func TestEvalYAML(t *testing.T) {
	for _, tc := range loadEvalSpecs(t) {
		t.Run(tc.Name, func(t *testing.T) {
			out, _, err := runExpc(t, tc.Input)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			want := fmt.Sprintf("Answer: %d\n", tc.Answer)
			if out != want {
				t.Errorf("output = %q, want %q", out, want)
			}
		})
	}
}

// TestEvalYAML_Interp runs the same programs through the tree
// interpreter; compiled and interpreted answers must agree.
func TestEvalYAML_Interp(t *testing.T) {
	for _, tc := range loadEvalSpecs(t) {
		t.Run(tc.Name, func(t *testing.T) {
			out, _, err := runExpc(t, tc.Input, "--interp")
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			want := fmt.Sprintf("Answer: %d\n", tc.Answer)
			if out != want {
				t.Errorf("output = %q, want %q", out, want)
			}
		})
	}
}
