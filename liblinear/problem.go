package liblinear

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Problem describes a training set. Rows of X are sorted by feature index;
// when Bias >= 0 the last node of every row is the bias feature (N, Bias)
// and N counts it.
type Problem struct {
	L    int
	N    int
	Y    []float64
	X    [][]FeatureNode
	Bias float64
}

// NewProblem wraps already prepared rows
func NewProblem(l int, n int, y []float64, x [][]FeatureNode, bias float64) *Problem {
	return &Problem{
		L:    l,
		N:    n,
		Y:    y,
		X:    x,
		Bias: bias,
	}
}

// ConstructProblem builds a problem from raw rows whose largest feature index
// is maxIndex. When bias >= 0 every row gets the extra node (maxIndex+1, bias);
// rows are copied so the caller's slices are never modified.
func ConstructProblem(y []float64, x [][]FeatureNode, maxIndex int, bias float64) (*Problem, error) {
	if len(y) != len(x) {
		return nil, errors.Wrapf(ErrInvalidProblem, "%d labels for %d rows", len(y), len(x))
	}

	l := len(y)
	n := maxIndex
	if bias >= 0 {
		n++
	}

	rows := make([][]FeatureNode, l)
	for i := 0; i < l; i++ {
		if bias >= 0 {
			rows[i] = make([]FeatureNode, len(x[i]), len(x[i])+1)
			copy(rows[i], x[i])
			rows[i] = append(rows[i], NewFeatureNode(maxIndex+1, bias))
		} else {
			rows[i] = x[i]
		}
	}

	labels := make([]float64, l)
	copy(labels, y)

	prob := NewProblem(l, n, labels, rows, bias)
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	return prob, nil
}

// Validate checks sizes and that every row is sorted by index within [1, N].
func (prob *Problem) Validate() error {
	if prob == nil {
		return errors.Wrap(ErrInvalidProblem, "problem is nil")
	}
	if prob.L < 0 || prob.N < 0 {
		return errors.Wrapf(ErrInvalidProblem, "negative size l=%d n=%d", prob.L, prob.N)
	}
	if len(prob.Y) != prob.L || len(prob.X) != prob.L {
		return errors.Wrapf(ErrInvalidProblem, "l=%d but %d labels and %d rows", prob.L, len(prob.Y), len(prob.X))
	}
	return validateNodes(prob.X, prob.N)
}

func validateNodes(vectors [][]FeatureNode, maxIndex int) error {
	for i, nodes := range vectors {
		indexBefore := 0
		for _, node := range nodes {
			if node.Index <= indexBefore {
				return errors.Wrapf(ErrInvalidProblem, "vector %d: feature nodes must be sorted by index in ascending order", i)
			}
			if node.Index > maxIndex {
				return errors.Wrapf(ErrInvalidProblem, "vector %d: index %d exceeds %d", i, node.Index, maxIndex)
			}
			indexBefore = node.Index
		}
	}
	return nil
}

// Transpose returns the column view of prob: N vectors, one per feature,
// whose nodes carry 1-based example indices.
func Transpose(prob *Problem) *Problem {
	l := prob.L
	n := prob.N

	colPtr := make([]int, n+1)
	probCol := NewProblem(l, n, make([]float64, l), make([][]FeatureNode, n), prob.Bias)
	copy(probCol.Y, prob.Y)

	for i := 0; i < l; i++ {
		for _, x := range prob.X[i] {
			colPtr[x.Index]++
		}
	}

	for i := 0; i < n; i++ {
		probCol.X[i] = make([]FeatureNode, 0, colPtr[i+1])
	}

	for i := 0; i < l; i++ {
		for _, x := range prob.X[i] {
			index := x.Index - 1
			probCol.X[index] = append(probCol.X[index], NewFeatureNode(i+1, x.Value))
		}
	}

	return probCol
}

// classGroups is the result of groupClasses
type classGroups struct {
	nrClass int
	label   []int
	start   []int
	count   []int
}

// groupClasses orders labels by first occurrence and fills perm so that
// examples of one class are contiguous.
func groupClasses(prob *Problem, perm []int) *classGroups {
	l := prob.L
	label := make([]int, 0, 16)
	count := make([]int, 0, 16)
	dataLabel := make([]int, l)

	for i := 0; i < l; i++ {
		thisLabel := int(prob.Y[i])
		j := 0
		for ; j < len(label); j++ {
			if thisLabel == label[j] {
				count[j]++
				break
			}
		}
		dataLabel[i] = j
		if j == len(label) {
			label = append(label, thisLabel)
			count = append(count, 1)
		}
	}
	nrClass := len(label)

	// Labels are ordered by their first occurrence in the training set.
	// However, for two-class sets with -1/+1 labels and -1 appears first,
	// we swap labels so that internally the positive data are the +1 instances.
	if nrClass == 2 && label[0] == -1 && label[1] == 1 {
		label[0], label[1] = label[1], label[0]
		count[0], count[1] = count[1], count[0]
		for i := 0; i < l; i++ {
			dataLabel[i] = 1 - dataLabel[i]
		}
	}

	start := make([]int, nrClass)
	for i := 1; i < nrClass; i++ {
		start[i] = start[i-1] + count[i-1]
	}
	for i := 0; i < l; i++ {
		perm[start[dataLabel[i]]] = i
		start[dataLabel[i]]++
	}
	start[0] = 0
	for i := 1; i < nrClass; i++ {
		start[i] = start[i-1] + count[i-1]
	}

	return &classGroups{nrClass: nrClass, label: label, start: start, count: count}
}

// checkProblemSize rejects weight matrices whose size overflows int32, the
// limit of the model file format.
func checkProblemSize(n int, nrClass int) error {
	if nrClass < 1 {
		nrClass = 1
	}
	if n >= math.MaxInt32/nrClass || n*nrClass < 0 {
		return errors.Wrapf(ErrProblemTooLarge, "'number of classes' * 'number of features' is too large: %d * %d", nrClass, n)
	}
	return nil
}
