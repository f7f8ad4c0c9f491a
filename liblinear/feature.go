package liblinear

// FeatureNode is one entry of a sparse vector. Index is 1-based. In a row
// view it names a feature, in a column view (see Transpose) it names an
// example.
type FeatureNode struct {
	Index int
	Value float64
}

// NewFeatureNode returns a FeatureNode
func NewFeatureNode(index int, value float64) FeatureNode {
	return FeatureNode{Index: index, Value: value}
}

// sparseNrm2Sq is the equivalent of sparse_operator::nrm2_sq
func sparseNrm2Sq(x []FeatureNode) float64 {
	var ret float64
	for _, feature := range x {
		ret += feature.Value * feature.Value
	}
	return ret
}

// sparseDot is the equivalent of sparse_operator::dot
func sparseDot(s []float64, x []FeatureNode) float64 {
	var ret float64
	for _, feature := range x {
		ret += s[feature.Index-1] * feature.Value
	}
	return ret
}

// sparseAxpy is the equivalent of sparse_operator::axpy
func sparseAxpy(a float64, x []FeatureNode, y []float64) {
	for _, feature := range x {
		y[feature.Index-1] += a * feature.Value
	}
}
