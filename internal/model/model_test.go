package model

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// stump splits on years of experience (feature 2) at 4.5.
func stump(low, high float64) *Tree {
	return &Tree{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{2, -2, -2},
		Threshold:     []float64{4.5, -2, -2},
		Value:         []float64{0, low, high},
	}
}

func TestLinearPredict(t *testing.T) {
	l := &Linear{Intercept: 30000, Coefficients: []float64{0, 0, 1000}}
	got, err := l.Predict([]float64{3, 1, 10})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 40000 {
		t.Errorf("Predict = %v, want 40000", got)
	}
	if _, err := l.Predict([]float64{1, 2}); !errors.Is(err, apperrors.ErrModelInvocation) {
		t.Errorf("expected ErrModelInvocation for wrong shape, got %v", err)
	}
}

func TestTreePredict(t *testing.T) {
	tree := stump(50000, 90000)
	if err := tree.Validate(3); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	tests := []struct {
		years float64
		want  float64
	}{
		{0, 50000},
		{4.5, 50000},
		{5, 90000},
	}
	for _, tt := range tests {
		got, err := tree.Predict([]float64{0, 0, tt.years})
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if got != tt.want {
			t.Errorf("Predict(years=%v) = %v, want %v", tt.years, got, tt.want)
		}
	}
}

func TestTreeValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		tree *Tree
	}{
		{"empty", &Tree{}},
		{"mismatched", &Tree{ChildrenLeft: []int{-1}, ChildrenRight: []int{-1}, Feature: []int{0}, Threshold: []float64{0}}},
		{"one child", &Tree{ChildrenLeft: []int{-1}, ChildrenRight: []int{0}, Feature: []int{0}, Threshold: []float64{0}, Value: []float64{1}}},
		{"cycle", &Tree{ChildrenLeft: []int{0}, ChildrenRight: []int{0}, Feature: []int{0}, Threshold: []float64{0}, Value: []float64{1}}},
		{"bad feature", &Tree{
			ChildrenLeft:  []int{1, -1, -1},
			ChildrenRight: []int{2, -1, -1},
			Feature:       []int{7, -2, -2},
			Threshold:     []float64{1, -2, -2},
			Value:         []float64{0, 1, 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tree.Validate(3); !errors.Is(err, apperrors.ErrInvalidArtifact) {
				t.Errorf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

func TestForestAverages(t *testing.T) {
	f := &Forest{Trees: []*Tree{stump(40000, 80000), stump(60000, 100000)}}
	if err := f.Validate(3); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := f.Predict([]float64{1, 1, 10})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 90000 {
		t.Errorf("Predict = %v, want 90000", got)
	}
}

const forestArtifact = `{
  "version": "test-rf",
  "features": ["Country", "EdLevel", "YearsCodePro"],
  "le_country": ["Germany", "Other", "United States of America"],
  "le_education": ["Bachelor's degree", "Master's degree", "Other"],
  "model": {
    "type": "random_forest",
    "trees": [
      {"children_left": [1, -1, -1], "children_right": [2, -1, -1],
       "feature": [2, -2, -2], "threshold": [4.5, -2, -2], "value": [0, 50000, 90000]}
    ]
  }
}`

func TestLoadForestArtifact(t *testing.T) {
	a, err := Load(strings.NewReader(forestArtifact))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Kind != KindRandomForest || a.Version != "test-rf" {
		t.Errorf("unexpected artifact header %+v", a)
	}
	if len(a.CountryClasses) != 3 || len(a.EducationClasses) != 3 {
		t.Errorf("classes not loaded: %+v", a)
	}
	got, err := a.Regressor.Predict([]float64{2, 0, 8})
	if err != nil || got != 90000 {
		t.Errorf("Predict = %v, %v", got, err)
	}
}

func TestLoadRejectsBadArtifacts(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"no classes":     `{"le_country": [], "le_education": ["Other"], "model": {"type": "linear", "coefficients": [1,2,3]}}`,
		"no model":       `{"le_country": ["Other"], "le_education": ["Other"]}`,
		"unknown type":   `{"le_country": ["Other"], "le_education": ["Other"], "model": {"type": "svm"}}`,
		"wrong features": `{"features": ["YearsCodePro"], "le_country": ["Other"], "le_education": ["Other"], "model": {"type": "linear", "coefficients": [1,2,3]}}`,
		"linear shape":   `{"le_country": ["Other"], "le_education": ["Other"], "model": {"type": "linear", "coefficients": [1]}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(body)); !errors.Is(err, apperrors.ErrInvalidArtifact) {
				t.Errorf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved_steps.json")
	if err := os.WriteFile(path, []byte(forestArtifact), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
}
