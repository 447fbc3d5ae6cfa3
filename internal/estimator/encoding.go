package estimator

import (
	"fmt"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// FallbackLabel is the vocabulary entry unseen labels are remapped to.
const FallbackLabel = "Other"

// CategoryEncoding is a fixed, injective mapping from labels to integer codes.
// The code of a label is its position in the class list the model was fit
// with.
type CategoryEncoding struct {
	name    string
	classes []string
	codes   map[string]int
}

// Resolution is the outcome of encoding one label.
type Resolution struct {
	Input    string `json:"input"`
	Label    string `json:"label"`
	Code     int    `json:"code"`
	Fallback bool   `json:"fallback"`
}

// NewCategoryEncoding builds an encoding from classes in code order.
// Duplicate or empty labels are rejected.
func NewCategoryEncoding(name string, classes []string) (*CategoryEncoding, error) {
	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		if c == "" {
			return nil, fmt.Errorf("%w: %s encoding has an empty label at code %d", apperrors.ErrInvalidArtifact, name, i)
		}
		if prev, dup := codes[c]; dup {
			return nil, fmt.Errorf("%w: %s encoding repeats %q at codes %d and %d", apperrors.ErrInvalidArtifact, name, c, prev, i)
		}
		codes[c] = i
	}
	owned := make([]string, len(classes))
	copy(owned, classes)
	return &CategoryEncoding{name: name, classes: owned, codes: codes}, nil
}

// Name identifies the encoding in diagnostics ("country", "education").
func (e *CategoryEncoding) Name() string { return e.name }

// Classes returns the vocabulary in code order.
func (e *CategoryEncoding) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Contains reports whether label is part of the vocabulary.
func (e *CategoryEncoding) Contains(label string) bool {
	_, ok := e.codes[label]
	return ok
}

// Decode returns the label for code.
func (e *CategoryEncoding) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.classes) {
		return "", false
	}
	return e.classes[code], true
}

// Encode returns the code for label, remapping unseen labels to
// FallbackLabel first. It fails with ErrUnknownCategory only when the
// fallback itself is missing from the vocabulary.
func (e *CategoryEncoding) Encode(label string) (Resolution, error) {
	if code, ok := e.codes[label]; ok {
		return Resolution{Input: label, Label: label, Code: code}, nil
	}
	code, ok := e.codes[FallbackLabel]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s encoding has no %q entry (input %q)", apperrors.ErrUnknownCategory, e.name, FallbackLabel, label)
	}
	return Resolution{Input: label, Label: FallbackLabel, Code: code, Fallback: true}, nil
}

// EncodeCategory is Encode returning only the code.
func EncodeCategory(e *CategoryEncoding, label string) (int, error) {
	res, err := e.Encode(label)
	if err != nil {
		return 0, err
	}
	return res.Code, nil
}
