/*
Package liblinear trains and applies large-scale linear classifiers and
regressors.

Every solver family of liblinear is available through Train: L2-regularized
logistic regression and L2-loss SVM in the primal (trust region Newton),
their duals and L1-loss SVM (dual coordinate descent), L1-regularized
L2-loss SVM and logistic regression, the Crammer and Singer multi-class
SVM, and three support vector regression solvers.

L1-regularized logistic regression is also exposed as a stateful
L1RLRSolver. It keeps its working set between calls so that a sequence of
increasing regularization strengths can be solved with warm starts:

	solver, err := liblinear.NewL1RLRSolver(liblinear.Transpose(prob), 0.01)
	if err != nil {
		return err
	}
	defer solver.Close()
	results, err := solver.SolvePath([]float64{0.01, 0.1, 1, 10})

TrainPath wraps the same machinery for multi-class problems and returns one
Model per strength. Models are written and read in the liblinear text format
by SaveModel and LoadModel.

Diagnostics go to a zerolog.Logger. Set one per call with Parameter.Logger or
WithLogger, or replace the process-wide sink with SetLogger and SetQuiet.
*/
package liblinear
