package liblinear

import (
	"math"

	"github.com/cockroachdb/errors"
)

// fitter trains one weight vector of a binary or regression subproblem.
// Labels of prob are +1/-1 for classification; cp and cn are the penalties
// of the positive and negative examples.
type fitter interface {
	fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error
}

type tronFitter struct {
	param     *Parameter
	objective func(prob *Problem, c []float64) function
}

func (f *tronFitter) fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error {
	epsCg := 0.1
	if f.param.InitSol != nil {
		epsCg = 0.5
	}

	eps := f.param.Eps
	c := make([]float64, prob.L)
	if f.param.SolverType.IsSupportVectorRegression() {
		for i := range c {
			c[i] = f.param.C
		}
	} else {
		eps = primalSolverTol(prob, eps)
		for i := range c {
			if prob.Y[i] > 0 {
				c[i] = cp
			} else {
				c[i] = cn
			}
		}
	}

	newTron(f.objective(prob, c), eps, ctx.maxIter, epsCg, ctx.logger).minimize(w)
	return nil
}

type dualSvcFitter struct {
	param *Parameter
}

func (f *dualSvcFitter) fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error {
	solveL2RL1L2Svc(ctx, prob, w, f.param.Eps, cp, cn, f.param.SolverType)
	return nil
}

type dualLRFitter struct {
	param *Parameter
}

func (f *dualLRFitter) fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error {
	solveL2RLRDual(ctx, prob, w, f.param.Eps, cp, cn)
	return nil
}

type dualSvrFitter struct {
	param *Parameter
}

func (f *dualSvrFitter) fit(ctx *solverContext, prob *Problem, w []float64, _ float64, _ float64) error {
	solveL2RL1L2Svr(ctx, prob, w, f.param)
	return nil
}

type l1rSvcFitter struct {
	param *Parameter
}

func (f *l1rSvcFitter) fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error {
	solveL1RL2Svc(ctx, Transpose(prob), w, primalSolverTol(prob, f.param.Eps), cp, cn)
	return nil
}

type l1rLRFitter struct {
	param *Parameter
}

func (f *l1rLRFitter) fit(ctx *solverContext, prob *Problem, w []float64, cp float64, cn float64) error {
	solver, err := NewL1RLRSolver(Transpose(prob), primalSolverTol(prob, f.param.Eps), l1rLROptions(ctx, f.param)...)
	if err != nil {
		return err
	}
	defer solver.Close()

	var wInit []float64
	if f.param.InitSol != nil {
		wInit = w
	}
	result, err := solver.Solve(cp, cn, wInit)
	if err != nil {
		return err
	}
	copy(w, result.W)
	return nil
}

// l1rLROptions configures an L1RLRSolver from param, logging through the
// context's solver logger.
func l1rLROptions(ctx *solverContext, param *Parameter) []L1RLRSolverOption {
	return []L1RLRSolverOption{
		WithSeed(param.Seed),
		WithMaxInnerIter(param.maxIters()),
		withSolverLogger(ctx.logger),
	}
}

func fitterFor(param *Parameter) (fitter, error) {
	switch param.SolverType {
	case L2R_LR:
		return &tronFitter{param: param, objective: func(prob *Problem, c []float64) function {
			return newL2RLRFun(prob, c)
		}}, nil
	case L2R_L2LOSS_SVC:
		return &tronFitter{param: param, objective: func(prob *Problem, c []float64) function {
			return newL2RL2SvcFun(prob, c)
		}}, nil
	case L2R_L2LOSS_SVR:
		return &tronFitter{param: param, objective: func(prob *Problem, c []float64) function {
			return newL2RL2SvrFun(prob, c, param.P)
		}}, nil
	case L2R_L2LOSS_SVC_DUAL, L2R_L1LOSS_SVC_DUAL:
		return &dualSvcFitter{param: param}, nil
	case L2R_LR_DUAL:
		return &dualLRFitter{param: param}, nil
	case L2R_L2LOSS_SVR_DUAL, L2R_L1LOSS_SVR_DUAL:
		return &dualSvrFitter{param: param}, nil
	case L1R_L2LOSS_SVC:
		return &l1rSvcFitter{param: param}, nil
	case L1R_LR:
		return &l1rLRFitter{param: param}, nil
	}
	return nil, newValidationError("solver_type", "unknown solver type", param.SolverType)
}

// primalSolverTol scales eps by the size of the smaller class, the stopping
// rule shared by the primal solvers.
func primalSolverTol(prob *Problem, eps float64) float64 {
	pos := 0
	for i := 0; i < prob.L; i++ {
		if prob.Y[i] > 0 {
			pos++
		}
	}
	neg := prob.L - pos
	return eps * math.Max(math.Min(float64(pos), float64(neg)), 1) / float64(prob.L)
}

func knownSolverType(solverType *SolverType) bool {
	for _, s := range solverTypeValues {
		if s == solverType {
			return true
		}
	}
	return false
}

// CheckParameter validates param against prob before any numerical work.
func CheckParameter(prob *Problem, param *Parameter) error {
	if param == nil {
		return newValidationError("param", "parameter is nil", nil)
	}
	if err := prob.Validate(); err != nil {
		return err
	}
	if !knownSolverType(param.SolverType) {
		return newValidationError("solver_type", "unknown solver type", param.SolverType)
	}
	if !(param.Eps > 0) {
		return newValidationError("eps", "eps <= 0", param.Eps)
	}
	if !validStrength(param.C) {
		return newValidationError("C", "C <= 0", param.C)
	}
	if !(param.P >= 0) {
		return newValidationError("p", "p < 0", param.P)
	}
	if len(param.Weight) != len(param.WeightLabel) {
		return newValidationError("weight", "number of weights and labels differ", len(param.Weight))
	}
	for _, weight := range param.Weight {
		if !validStrength(weight) {
			return newValidationError("weight", "class weight must be positive", weight)
		}
	}

	if len(param.WeightLabel) > 0 && !param.SolverType.IsSupportVectorRegression() {
		present := make(map[int]bool)
		for _, y := range prob.Y {
			present[int(y)] = true
		}
		for _, label := range param.WeightLabel {
			if !present[label] {
				return newValidationError("weight_label", "class label specified in weight is not found", label)
			}
		}
	}

	if param.InitSol != nil {
		if !param.SolverType.supportsInitialSolution() {
			return newValidationError("init_sol", "Initial-solution specification supported only for solver L2R_LR, L2R_L2LOSS_SVC and L1R_LR", param.SolverType)
		}
		if want := initSolLength(prob); len(param.InitSol) != want {
			return newValidationError("init_sol", "length must be n for two classes and n*nr_class otherwise", len(param.InitSol))
		}
	}
	return nil
}

func initSolLength(prob *Problem) int {
	seen := make(map[int]bool)
	for _, y := range prob.Y {
		seen[int(y)] = true
	}
	if len(seen) <= 2 {
		return prob.N
	}
	return prob.N * len(seen)
}

// Train uses the Problem and Parameters to create a training model
func Train(prob *Problem, param *Parameter) (*Model, error) {
	if err := CheckParameter(prob, param); err != nil {
		return nil, err
	}

	ctx := newSolverContext(param)

	l := prob.L
	n := prob.N
	wSize := prob.N

	model := &Model{SolverType: param.SolverType, Bias: prob.Bias}
	if prob.Bias >= 0 {
		model.NumFeatures = n - 1
	} else {
		model.NumFeatures = n
	}

	if param.SolverType.IsSupportVectorRegression() {
		if err := checkProblemSize(n, 1); err != nil {
			return nil, err
		}
		fit, err := fitterFor(param)
		if err != nil {
			return nil, err
		}
		model.W = make([]float64, wSize)
		model.NumClass = 2
		if err := fit.fit(ctx, prob, model.W, 0, 0); err != nil {
			return nil, err
		}
		return model, nil
	}

	if l == 0 {
		return nil, errors.Wrap(ErrInvalidProblem, "no training examples")
	}

	perm := make([]int, l)
	// group training data of the same class
	groups := groupClasses(prob, perm)
	nrClass := groups.nrClass
	if err := checkProblemSize(n, nrClass); err != nil {
		return nil, err
	}

	model.NumClass = nrClass
	model.Label = append([]int(nil), groups.label...)
	weightedC := weightedCost(param, groups)

	// constructing the subproblem
	subProb := NewProblem(l, n, make([]float64, l), make([][]FeatureNode, l), prob.Bias)
	for i := 0; i < l; i++ {
		subProb.X[i] = prob.X[perm[i]]
	}

	// multi-class svm by Crammer and Singer
	if param.SolverType == MCSVM_CS {
		model.W = make([]float64, n*nrClass)
		for i := 0; i < nrClass; i++ {
			for j := groups.start[i]; j < groups.start[i]+groups.count[i]; j++ {
				subProb.Y[j] = float64(i)
			}
		}
		newSolverMCSVMCS(ctx, subProb, nrClass, weightedC, param.Eps).solve(model.W)
		return model, nil
	}

	fit, err := fitterFor(param)
	if err != nil {
		return nil, err
	}

	if nrClass == 2 {
		model.W = make([]float64, wSize)
		setOneVsRestLabels(subProb, groups, 0)
		if param.InitSol != nil {
			copy(model.W, param.InitSol)
		}
		if err := fit.fit(ctx, subProb, model.W, weightedC[0], weightedC[1]); err != nil {
			return nil, err
		}
		return model, nil
	}

	model.W = make([]float64, wSize*nrClass)
	w := make([]float64, wSize)
	for i := 0; i < nrClass; i++ {
		setOneVsRestLabels(subProb, groups, i)
		for j := 0; j < wSize; j++ {
			if param.InitSol != nil {
				w[j] = param.InitSol[j*nrClass+i]
			} else {
				w[j] = 0
			}
		}

		if err := fit.fit(ctx, subProb, w, weightedC[i], param.C); err != nil {
			return nil, err
		}

		for j := 0; j < wSize; j++ {
			model.W[j*nrClass+i] = w[j]
		}
	}
	return model, nil
}

// weightedCost multiplies C by the class weights of param
func weightedCost(param *Parameter, groups *classGroups) []float64 {
	weightedC := make([]float64, groups.nrClass)
	for i := range weightedC {
		weightedC[i] = param.C
	}
	for i, label := range param.WeightLabel {
		for j := 0; j < groups.nrClass; j++ {
			if label == groups.label[j] {
				weightedC[j] *= param.Weight[i]
				break
			}
		}
	}
	return weightedC
}

// setOneVsRestLabels marks the grouped examples of class as +1, the rest -1
func setOneVsRestLabels(subProb *Problem, groups *classGroups, class int) {
	si := groups.start[class]
	ei := si + groups.count[class]
	for k := 0; k < subProb.L; k++ {
		if k >= si && k < ei {
			subProb.Y[k] = 1
		} else {
			subProb.Y[k] = -1
		}
	}
}

// TrainPath trains one L1R_LR model per strength in cs. Every one-vs-rest
// subproblem is solved along the whole path by a single L1RLRSolver, so each
// strength starts from the solution of the one before. cs must be positive
// and non-decreasing; param.C is ignored.
func TrainPath(prob *Problem, param *Parameter, cs []float64) ([]*Model, error) {
	if param == nil {
		return nil, newValidationError("param", "parameter is nil", nil)
	}
	if param.SolverType != L1R_LR {
		return nil, newValidationError("solver_type", "regularization paths are supported only for solver L1R_LR", param.SolverType)
	}
	if len(cs) == 0 {
		return nil, newValidationError("C", "path is empty", cs)
	}
	for k, c := range cs {
		if !validStrength(c) {
			return nil, newValidationError("C", "C <= 0", c)
		}
		if k > 0 && c < cs[k-1] {
			return nil, errors.Wrapf(ErrUnsortedPath, "C[%d]=%g follows C[%d]=%g", k, c, k-1, cs[k-1])
		}
	}
	if param.InitSol != nil {
		return nil, newValidationError("init_sol", "paths always start from zero", len(param.InitSol))
	}

	checked := param.clone()
	checked.C = cs[0]
	if err := CheckParameter(prob, checked); err != nil {
		return nil, err
	}

	l := prob.L
	n := prob.N
	if l == 0 {
		return nil, errors.Wrap(ErrInvalidProblem, "no training examples")
	}

	perm := make([]int, l)
	groups := groupClasses(prob, perm)
	nrClass := groups.nrClass
	if err := checkProblemSize(n, nrClass); err != nil {
		return nil, err
	}

	// class weights relative to C
	unit := param.clone()
	unit.C = 1
	factors := weightedCost(unit, groups)

	nrW := nrClass
	if nrClass == 2 {
		nrW = 1
	}

	models := make([]*Model, len(cs))
	for k := range cs {
		models[k] = &Model{
			SolverType: L1R_LR,
			Bias:       prob.Bias,
			NumClass:   nrClass,
			Label:      append([]int(nil), groups.label...),
			W:          make([]float64, n*nrW),
		}
		if prob.Bias >= 0 {
			models[k].NumFeatures = n - 1
		} else {
			models[k].NumFeatures = n
		}
	}

	subProb := NewProblem(l, n, make([]float64, l), make([][]FeatureNode, l), prob.Bias)
	for i := 0; i < l; i++ {
		subProb.X[i] = prob.X[perm[i]]
	}

	ctx := newSolverContext(param)
	for i := 0; i < nrW; i++ {
		setOneVsRestLabels(subProb, groups, i)

		wn := 1.0
		if nrClass == 2 {
			wn = factors[1]
		}
		opts := append(l1rLROptions(ctx, param), WithClassWeights(factors[i], wn))
		solver, err := NewL1RLRSolver(Transpose(subProb), primalSolverTol(subProb, param.Eps), opts...)
		if err != nil {
			return nil, err
		}
		results, err := solver.SolvePath(cs)
		solver.Close()
		if err != nil {
			return nil, err
		}

		for k, result := range results {
			for j := 0; j < n; j++ {
				models[k].W[j*nrW+i] = result.W[j]
			}
		}
	}
	return models, nil
}
