package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// lgbNode is a node of LightGBM's dump_model() tree_structure. Leaves carry
// leaf_value and no children.
type lgbNode struct {
	SplitFeature *int     `json:"split_feature,omitempty"`
	Threshold    float64  `json:"threshold,omitempty"`
	DecisionType string   `json:"decision_type,omitempty"`
	DefaultLeft  bool     `json:"default_left,omitempty"`
	LeftChild    *lgbNode `json:"left_child,omitempty"`
	RightChild   *lgbNode `json:"right_child,omitempty"`
	LeafValue    float64  `json:"leaf_value,omitempty"`
}

type lgbArtifact struct {
	MaxFeatureIdx int `json:"max_feature_idx"`
	TreeInfo      []struct {
		TreeIndex     int     `json:"tree_index"`
		TreeStructure lgbNode `json:"tree_structure"`
	} `json:"tree_info"`
}

// LightGBMModel evaluates a LightGBM regressor exported with dump_model().
type LightGBMModel struct {
	trees [][]flatNode
}

func LoadLightGBM(data []byte) (*LightGBMModel, error) {
	var artifact lgbArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("invalid lightgbm dump: %w", err)
	}
	if err := checkWidth(ModelLightGBM, artifact.MaxFeatureIdx+1); err != nil {
		return nil, err
	}
	if len(artifact.TreeInfo) == 0 {
		return nil, errors.New("lightgbm dump contains no trees")
	}

	model := &LightGBMModel{}
	for _, info := range artifact.TreeInfo {
		var nodes []flatNode
		if _, err := flattenLGBNode(&info.TreeStructure, &nodes); err != nil {
			return nil, fmt.Errorf("tree %d: %w", info.TreeIndex, err)
		}
		model.trees = append(model.trees, nodes)
	}
	return model, nil
}

// flattenLGBNode appends n and its subtree in pre-order and returns n's index.
func flattenLGBNode(n *lgbNode, nodes *[]flatNode) (int, error) {
	idx := len(*nodes)
	*nodes = append(*nodes, flatNode{})

	if n.SplitFeature == nil {
		(*nodes)[idx] = flatNode{leaf: true, value: n.LeafValue}
		return idx, nil
	}
	if n.DecisionType != "" && n.DecisionType != "<=" {
		return 0, fmt.Errorf("unsupported decision type %q", n.DecisionType)
	}
	if n.LeftChild == nil || n.RightChild == nil {
		return 0, errors.New("split node without both children")
	}
	feature, err := checkFeatureIndex(*n.SplitFeature)
	if err != nil {
		return 0, err
	}

	left, err := flattenLGBNode(n.LeftChild, nodes)
	if err != nil {
		return 0, err
	}
	right, err := flattenLGBNode(n.RightChild, nodes)
	if err != nil {
		return 0, err
	}

	missing := right
	if n.DefaultLeft {
		missing = left
	}
	(*nodes)[idx] = flatNode{
		feature:   feature,
		threshold: n.Threshold,
		left:      left,
		right:     right,
		missing:   missing,
	}
	return idx, nil
}

func (m *LightGBMModel) Name() string { return ModelLightGBM }

func (m *LightGBMModel) Scaled() bool { return false }

func (m *LightGBMModel) Predict(features FeatureVector) (float64, error) {
	var sum float64
	for _, tree := range m.trees {
		sum += evalTree(tree, features, func(x, t float64) bool { return x <= t })
	}
	return checkOutput(ModelLightGBM, sum)
}
