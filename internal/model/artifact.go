package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// Model kinds understood by Load.
const (
	KindLinear       = "linear"
	KindDecisionTree = "decision_tree"
	KindRandomForest = "random_forest"
)

// Features is the feature order every artifact must be fit against.
var Features = []string{"Country", "EdLevel", "YearsCodePro"}

// Artifact bundles the regressor with the two label encoders it was fit with.
//
// On-disk layout:
//
//	{
//	  "version": "2023-05-rf",
//	  "features": ["Country", "EdLevel", "YearsCodePro"],
//	  "le_country": ["Australia", ..., "Other", ...],
//	  "le_education": ["Bachelor's degree", ..., "Other"],
//	  "model": {"type": "random_forest", "trees": [...]}
//	}
type Artifact struct {
	Version          string
	Kind             string
	CountryClasses   []string
	EducationClasses []string
	Regressor        Regressor
}

type artifactFile struct {
	Version     string          `json:"version"`
	Features    []string        `json:"features"`
	LeCountry   []string        `json:"le_country"`
	LeEducation []string        `json:"le_education"`
	Model       json.RawMessage `json:"model"`
}

type modelHeader struct {
	Type string `json:"type"`
}

// LoadFile reads and validates an artifact from path.
func LoadFile(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model artifact %s: %w", path, err)
	}
	defer f.Close()
	a, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading model artifact %s: %w", path, err)
	}
	return a, nil
}

// Load decodes and validates an artifact.
func Load(r io.Reader) (*Artifact, error) {
	var file artifactFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", apperrors.ErrInvalidArtifact, err)
	}
	if len(file.Features) != 0 && !sameFeatures(file.Features) {
		return nil, fmt.Errorf("%w: features %v, expected %v", apperrors.ErrInvalidArtifact, file.Features, Features)
	}
	if len(file.LeCountry) == 0 || len(file.LeEducation) == 0 {
		return nil, fmt.Errorf("%w: missing label encoder classes", apperrors.ErrInvalidArtifact)
	}
	if len(file.Model) == 0 {
		return nil, fmt.Errorf("%w: missing model", apperrors.ErrInvalidArtifact)
	}

	var header modelHeader
	if err := json.Unmarshal(file.Model, &header); err != nil {
		return nil, fmt.Errorf("%w: decoding model header: %v", apperrors.ErrInvalidArtifact, err)
	}
	reg, err := decodeRegressor(header.Type, file.Model)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Version:          file.Version,
		CountryClasses:   file.LeCountry,
		EducationClasses: file.LeEducation,
		Regressor:        reg,
		Kind:             header.Type,
	}, nil
}

func decodeRegressor(kind string, raw json.RawMessage) (Regressor, error) {
	n := len(Features)
	switch kind {
	case KindLinear:
		var l Linear
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("%w: decoding linear model: %v", apperrors.ErrInvalidArtifact, err)
		}
		if len(l.Coefficients) != n {
			return nil, fmt.Errorf("%w: linear model has %d coefficients, expected %d", apperrors.ErrInvalidArtifact, len(l.Coefficients), n)
		}
		return &l, nil
	case KindDecisionTree:
		var t Tree
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("%w: decoding tree: %v", apperrors.ErrInvalidArtifact, err)
		}
		if err := t.Validate(n); err != nil {
			return nil, err
		}
		return &t, nil
	case KindRandomForest:
		var f Forest
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: decoding forest: %v", apperrors.ErrInvalidArtifact, err)
		}
		if err := f.Validate(n); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported model type %q", apperrors.ErrInvalidArtifact, kind)
	}
}

func sameFeatures(got []string) bool {
	if len(got) != len(Features) {
		return false
	}
	for i := range got {
		if got[i] != Features[i] {
			return false
		}
	}
	return true
}
