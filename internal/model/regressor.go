// Package model evaluates pre-fit regression models exported from the
// training environment. Models are read-only after loading and safe for
// concurrent use.
package model

import (
	"fmt"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// Regressor maps a feature vector to a predicted value.
type Regressor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
}

func checkShape(want int, features []float64) error {
	if len(features) != want {
		return fmt.Errorf("%w: expected %d features, got %d", apperrors.ErrModelInvocation, want, len(features))
	}
	return nil
}

// Linear is an ordinary least-squares style model.
type Linear struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (l *Linear) NumFeatures() int { return len(l.Coefficients) }

func (l *Linear) Predict(features []float64) (float64, error) {
	if err := checkShape(len(l.Coefficients), features); err != nil {
		return 0, err
	}
	y := l.Intercept
	for i, c := range l.Coefficients {
		y += c * features[i]
	}
	return y, nil
}

// Tree is a regression tree in scikit-learn's parallel-array layout. Node i
// is a leaf when ChildrenLeft[i] == -1; otherwise samples with
// x[Feature[i]] <= Threshold[i] go left.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`

	nFeatures int
}

const leaf = -1

// Validate checks array lengths, child indices and feature indices, and that
// every path from the root terminates.
func (t *Tree) Validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("%w: empty tree", apperrors.ErrInvalidArtifact)
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("%w: tree arrays have mismatched lengths", apperrors.ErrInvalidArtifact)
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			if r != leaf {
				return fmt.Errorf("%w: node %d has only one child", apperrors.ErrInvalidArtifact, i)
			}
			continue
		}
		// Children always come after their parent in scikit-learn's
		// depth-first layout, which also rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("%w: node %d has out-of-range children (%d, %d)", apperrors.ErrInvalidArtifact, i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d of %d", apperrors.ErrInvalidArtifact, i, f, nFeatures)
		}
	}
	t.nFeatures = nFeatures
	return nil
}

func (t *Tree) NumFeatures() int { return t.nFeatures }

func (t *Tree) Predict(features []float64) (float64, error) {
	if err := checkShape(t.nFeatures, features); err != nil {
		return 0, err
	}
	return t.eval(features), nil
}

func (t *Tree) eval(features []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if features[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Forest averages the predictions of its trees, as a random forest
// regressor does.
type Forest struct {
	Trees []*Tree `json:"trees"`

	nFeatures int
}

func (f *Forest) Validate(nFeatures int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", apperrors.ErrInvalidArtifact)
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("%w: tree %d is null", apperrors.ErrInvalidArtifact, i)
		}
		if err := t.Validate(nFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	f.nFeatures = nFeatures
	return nil
}

func (f *Forest) NumFeatures() int { return f.nFeatures }

func (f *Forest) Predict(features []float64) (float64, error) {
	if err := checkShape(f.nFeatures, features); err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.eval(features)
	}
	return sum / float64(len(f.Trees)), nil
}
