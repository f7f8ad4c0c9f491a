package liblinear

import (
	"math"

	"github.com/rs/zerolog"
)

// DefaultMaxIters is the iteration cap used when Parameter.MaxIters is not positive.
const DefaultMaxIters = 1000

// Parameter contains the configuration of one training run
type Parameter struct {
	SolverType *SolverType
	C          float64
	Eps        float64 // stopping criteria
	P          float64 // epsilon of the SVR loss
	MaxIters   int

	// Weight[i] multiplies C for the class labelled WeightLabel[i].
	Weight      []float64
	WeightLabel []int

	// InitSol warm-starts L2R_LR, L2R_L2LOSS_SVC and L1R_LR.
	InitSol []float64

	// Seed drives the coordinate shuffles. Runs with equal seeds are reproducible.
	Seed int64

	// Logger overrides the process-wide sink set with SetLogger.
	Logger *zerolog.Logger
}

// NewParameter constructs a Parameter. A non-positive eps selects the
// solver's default tolerance.
func NewParameter(solverType *SolverType, c float64, eps float64, p float64, maxIters int) *Parameter {
	if eps <= 0 && solverType != nil {
		eps = solverType.DefaultEps()
	}
	return &Parameter{
		SolverType: solverType,
		C:          c,
		Eps:        eps,
		P:          p,
		MaxIters:   maxIters,
	}
}

// NumWeights gets the number of class weights
func (p *Parameter) NumWeights() int {
	return len(p.Weight)
}

// SetWeights sets the per-class multipliers of C
func (p *Parameter) SetWeights(weights []float64, labels []int) error {
	if len(weights) != len(labels) {
		return newValidationError("weight", "number of weights and labels differ", len(weights))
	}
	for _, weight := range weights {
		if weight <= 0 || math.IsNaN(weight) {
			return newValidationError("weight", "class weight must be positive", weight)
		}
	}
	p.Weight = append([]float64(nil), weights...)
	p.WeightLabel = append([]int(nil), labels...)
	return nil
}

// Weights returns a copy of the class weights
func (p *Parameter) Weights() []float64 {
	return append([]float64(nil), p.Weight...)
}

// WeightLabels returns a copy of the weighted class labels
func (p *Parameter) WeightLabels() []int {
	return append([]int(nil), p.WeightLabel...)
}

// SetC sets the regularization strength
func (p *Parameter) SetC(c float64) error {
	if !(c > 0) || math.IsInf(c, 1) {
		return newValidationError("C", "C <= 0", c)
	}
	p.C = c
	return nil
}

// SetEps sets the stopping tolerance
func (p *Parameter) SetEps(eps float64) error {
	if !(eps > 0) {
		return newValidationError("eps", "eps <= 0", eps)
	}
	p.Eps = eps
	return nil
}

// SetSolverType sets the solver
func (p *Parameter) SetSolverType(solverType *SolverType) error {
	if solverType == nil {
		return newValidationError("solver_type", "solver type must not be nil", nil)
	}
	p.SolverType = solverType
	return nil
}

func (p *Parameter) maxIters() int {
	if p.MaxIters <= 0 {
		return DefaultMaxIters
	}
	return p.MaxIters
}

func (p *Parameter) clone() *Parameter {
	c := *p
	c.Weight = p.Weights()
	c.WeightLabel = p.WeightLabels()
	if p.InitSol != nil {
		c.InitSol = append([]float64(nil), p.InitSol...)
	}
	return &c
}
