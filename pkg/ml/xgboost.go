package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// xgbNode is one node of an XGBoost JSON tree dump.
type xgbNode struct {
	NodeID         int       `json:"nodeid"`
	Split          string    `json:"split,omitempty"`
	SplitCondition float64   `json:"split_condition,omitempty"`
	Yes            int       `json:"yes,omitempty"`
	No             int       `json:"no,omitempty"`
	Missing        int       `json:"missing,omitempty"`
	Leaf           *float64  `json:"leaf,omitempty"`
	Children       []xgbNode `json:"children,omitempty"`
}

type xgbArtifact struct {
	BaseScore   float64   `json:"base_score"`
	NumFeatures int       `json:"num_features"`
	Trees       []xgbNode `json:"trees"`
}

type flatNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
	missing   int
}

// XGBoostModel evaluates an XGBoost regressor exported with
// get_dump(dump_format="json").
type XGBoostModel struct {
	baseScore float64
	trees     [][]flatNode
}

func LoadXGBoost(data []byte) (*XGBoostModel, error) {
	var artifact xgbArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("invalid xgboost dump: %w", err)
	}
	if err := checkWidth(ModelXGBoost, artifact.NumFeatures); err != nil {
		return nil, err
	}
	if len(artifact.Trees) == 0 {
		return nil, errors.New("xgboost dump contains no trees")
	}

	model := &XGBoostModel{baseScore: artifact.BaseScore}
	for i := range artifact.Trees {
		tree, err := flattenXGBTree(&artifact.Trees[i])
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		model.trees = append(model.trees, tree)
	}
	return model, nil
}

func flattenXGBTree(root *xgbNode) ([]flatNode, error) {
	byID := make(map[int]*xgbNode)
	var walk func(n *xgbNode)
	walk = func(n *xgbNode) {
		byID[n.NodeID] = n
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)

	nodes := make([]flatNode, len(byID))
	for id, n := range byID {
		if id < 0 || id >= len(nodes) {
			return nil, fmt.Errorf("node id %d out of range", id)
		}
		if n.Leaf != nil {
			nodes[id] = flatNode{leaf: true, value: *n.Leaf}
			continue
		}
		feature, err := featureIndex(n.Split)
		if err != nil {
			return nil, err
		}
		for _, child := range []int{n.Yes, n.No, n.Missing} {
			if _, ok := byID[child]; !ok {
				return nil, fmt.Errorf("node %d references missing child %d", id, child)
			}
		}
		nodes[id] = flatNode{
			feature:   feature,
			threshold: n.SplitCondition,
			left:      n.Yes,
			right:     n.No,
			missing:   n.Missing,
		}
	}
	return nodes, nil
}

func (m *XGBoostModel) Name() string { return ModelXGBoost }

func (m *XGBoostModel) Scaled() bool { return false }

func (m *XGBoostModel) Predict(features FeatureVector) (float64, error) {
	sum := m.baseScore
	for _, tree := range m.trees {
		sum += evalTree(tree, features, func(x, t float64) bool { return x < t })
	}
	return checkOutput(ModelXGBoost, sum)
}

// evalTree walks a flattened tree from node 0; goLeft decides the branch.
func evalTree(tree []flatNode, features FeatureVector, goLeft func(x, threshold float64) bool) float64 {
	i := 0
	for steps := 0; steps <= len(tree); steps++ {
		n := tree[i]
		if n.leaf {
			return n.value
		}
		x := features[n.feature]
		switch {
		case math.IsNaN(x):
			i = n.missing
		case goLeft(x, n.threshold):
			i = n.left
		default:
			i = n.right
		}
	}
	return math.NaN()
}
