// Package model loads serialized tree-ensemble regressors and evaluates
// them. The artifact format is the portable JSON dump of a trained ensemble:
// a flat node array per tree with child indices, the usual export shape for
// gradient-boosted and random-forest models.
package model

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/stat"
)

// Predictor is an in-memory handle to one loaded regression model.
type Predictor interface {
	Name() string
	NumTrees() int
	// Predict evaluates the model on one feature vector.
	Predict(features []float64) (float64, error)
}

type node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// evaluate walks the tree for one feature vector. Traversal is bounded by
// the node count so a malformed dump cannot loop forever.
func (t *tree) evaluate(features []float64) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("node index %d out of range", idx)
		}
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(features) {
			return 0, fmt.Errorf("feature index %d out of range for %d features", n.Feature, len(features))
		}
		if features[n.Feature] < n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0, fmt.Errorf("tree traversal did not reach a leaf")
}

// Model kinds.
const (
	KindBoosted = "boosted"
	KindForest  = "forest"
)

type dump struct {
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	NumFeatures  int     `json:"num_features"`
	BaseScore    float64 `json:"base_score"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []tree  `json:"trees"`
}

type ensemble struct {
	dump
}

// Load reads a model dump from path and validates its structure.
// A malformed or internally inconsistent dump returns a format error
// satisfying IsFormat.
func Load(path string) (Predictor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d dump
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, ErrFormat(path, err)
	}
	if err := d.validate(); err != nil {
		return nil, ErrFormat(path, err)
	}
	if d.Kind == KindBoosted && d.LearningRate == 0 {
		d.LearningRate = 1
	}
	return &ensemble{dump: d}, nil
}

func (d *dump) validate() error {
	if d.Name == "" {
		return fmt.Errorf("missing model name")
	}
	switch d.Kind {
	case KindBoosted, KindForest:
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	if d.NumFeatures <= 0 {
		return fmt.Errorf("num_features must be positive")
	}
	if len(d.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	for ti, t := range d.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= d.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
			if n.Left == ni || n.Right == ni {
				return fmt.Errorf("tree %d node %d: self-referencing child", ti, ni)
			}
		}
	}
	return nil
}

func (e *ensemble) Name() string  { return e.dump.Name }
func (e *ensemble) NumTrees() int { return len(e.Trees) }

func (e *ensemble) Predict(features []float64) (float64, error) {
	if len(features) != e.NumFeatures {
		return 0, fmt.Errorf("model %s expects %d features, got %d", e.dump.Name, e.NumFeatures, len(features))
	}
	outs := make([]float64, len(e.Trees))
	for i := range e.Trees {
		v, err := e.Trees[i].evaluate(features)
		if err != nil {
			return 0, fmt.Errorf("model %s tree %d: %w", e.dump.Name, i, err)
		}
		outs[i] = v
	}
	switch e.Kind {
	case KindForest:
		return stat.Mean(outs, nil), nil
	default: // boosted
		sum := 0.0
		for _, v := range outs {
			sum += v
		}
		return e.BaseScore + e.LearningRate*sum, nil
	}
}
