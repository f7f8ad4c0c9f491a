package liblinear

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// L2R_LR : L2-regularized logistic regression (primal)
var L2R_LR = newSolverType(0, "L2R_LR", true, false, 0.01)

// L2R_L2LOSS_SVC_DUAL : L2-regularized L2-loss support vector classification (dual)
var L2R_L2LOSS_SVC_DUAL = newSolverType(1, "L2R_L2LOSS_SVC_DUAL", false, false, 0.1)

// L2R_L2LOSS_SVC : L2-regularized L2-loss support vector classification (primal)
var L2R_L2LOSS_SVC = newSolverType(2, "L2R_L2LOSS_SVC", false, false, 0.01)

// L2R_L1LOSS_SVC_DUAL : L2-regularized L1-loss support vector classification (dual)
var L2R_L1LOSS_SVC_DUAL = newSolverType(3, "L2R_L1LOSS_SVC_DUAL", false, false, 0.1)

// MCSVM_CS : multi-class support vector classification by Crammer and Singer
var MCSVM_CS = newSolverType(4, "MCSVM_CS", false, false, 0.1)

// L1R_L2LOSS_SVC : L1-regularized L2-loss support vector classification
var L1R_L2LOSS_SVC = newSolverType(5, "L1R_L2LOSS_SVC", false, false, 0.01)

// L1R_LR : L1-regularized logistic regression
var L1R_LR = newSolverType(6, "L1R_LR", true, false, 0.01)

// L2R_LR_DUAL : L2-regularized logistic regression (dual)
var L2R_LR_DUAL = newSolverType(7, "L2R_LR_DUAL", true, false, 0.1)

// L2R_L2LOSS_SVR : L2-regularized L2-loss support vector regression (primal)
var L2R_L2LOSS_SVR = newSolverType(11, "L2R_L2LOSS_SVR", false, true, 0.001)

// L2R_L2LOSS_SVR_DUAL : L2-regularized L2-loss support vector regression (dual)
var L2R_L2LOSS_SVR_DUAL = newSolverType(12, "L2R_L2LOSS_SVR_DUAL", false, true, 0.1)

// L2R_L1LOSS_SVR_DUAL : L2-regularized L1-loss support vector regression (dual)
var L2R_L1LOSS_SVR_DUAL = newSolverType(13, "L2R_L1LOSS_SVR_DUAL", false, true, 0.1)

var solverTypeValues = []*SolverType{
	L2R_LR,
	L2R_L2LOSS_SVC_DUAL,
	L2R_L2LOSS_SVC,
	L2R_L1LOSS_SVC_DUAL,
	MCSVM_CS,
	L1R_L2LOSS_SVC,
	L1R_LR,
	L2R_LR_DUAL,
	L2R_L2LOSS_SVR,
	L2R_L2LOSS_SVR_DUAL,
	L2R_L1LOSS_SVR_DUAL,
}

// SolverType describes the properties of the solver. The set of values is
// closed; compare by pointer.
type SolverType struct {
	id                       int
	name                     string
	logisticRegressionSolver bool
	supportVectorRegression  bool
	defaultEps               float64
}

func newSolverType(id int, name string, logisticRegressionSolver bool, supportVectorRegression bool, defaultEps float64) *SolverType {
	return &SolverType{
		id:                       id,
		name:                     name,
		logisticRegressionSolver: logisticRegressionSolver,
		supportVectorRegression:  supportVectorRegression,
		defaultEps:               defaultEps,
	}
}

// SolverTypeValues gives a list of SolverTypes
func SolverTypeValues() []*SolverType {
	values := make([]*SolverType, len(solverTypeValues))
	copy(values, solverTypeValues)
	return values
}

// SolverTypeByID looks up the solver with the numeric id used by the
// command-line tools (-s).
func SolverTypeByID(id int) (*SolverType, error) {
	for _, solverType := range solverTypeValues {
		if solverType.id == id {
			return solverType, nil
		}
	}
	return nil, newValidationError("solver_type", "unknown solver type", id)
}

// SolverTypeByName looks up the solver with the name written to model files.
func SolverTypeByName(name string) (*SolverType, error) {
	for _, solverType := range solverTypeValues {
		if strings.EqualFold(solverType.name, name) {
			return solverType, nil
		}
	}
	return nil, errors.Wrapf(ErrMalformedModel, "unknown solver type %q", name)
}

// ID is the numeric id of the solver
func (solverType *SolverType) ID() int {
	return solverType.id
}

// Name is the name written to model files
func (solverType *SolverType) Name() string {
	return solverType.name
}

func (solverType *SolverType) String() string {
	return solverType.name
}

// DefaultEps is the stopping tolerance used when none is configured.
func (solverType *SolverType) DefaultEps() float64 {
	return solverType.defaultEps
}

// IsSupportVectorRegression returns if this solver type is a regression solver
func (solverType *SolverType) IsSupportVectorRegression() bool {
	return solverType.supportVectorRegression
}

// IsLogisticRegressionSolver returns if this solver type is a logistic regression solver
func (solverType *SolverType) IsLogisticRegressionSolver() bool {
	return solverType.logisticRegressionSolver
}

// supportsInitialSolution reports whether Parameter.InitSol is honoured.
func (solverType *SolverType) supportsInitialSolution() bool {
	return solverType == L2R_LR || solverType == L2R_L2LOSS_SVC || solverType == L1R_LR
}
