package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"limhan.info/l1path/liblinear"
)

const trainLong = `Trains a liblinear model on svmlight data.

solver types (-s):
  for multi-class classification
     0 -- L2-regularized logistic regression (primal)
     1 -- L2-regularized L2-loss support vector classification (dual)
     2 -- L2-regularized L2-loss support vector classification (primal)
     3 -- L2-regularized L1-loss support vector classification (dual)
     4 -- support vector classification by Crammer and Singer
     5 -- L1-regularized L2-loss support vector classification
     6 -- L1-regularized logistic regression
     7 -- L2-regularized logistic regression (dual)
  for regression
    11 -- L2-regularized L2-loss support vector regression (primal)
    12 -- L2-regularized L2-loss support vector regression (dual)
    13 -- L2-regularized L1-loss support vector regression (dual)

tolerance of termination criterion (-e):
  -s 0 and 2
      |f'(w)|_2 <= eps*min(pos,neg)/l*|f'(w0)|_2,
      where f is the primal function and pos/neg are # of
      positive/negative data (default 0.01)
  -s 11
      |f'(w)|_2 <= eps*|f'(w0)|_2 (default 0.001)
  -s 1, 3, 4 and 7
      Dual maximal violation <= eps; similar to libsvm (default 0.1)
  -s 5 and 6
      |f'(w)|_1 <= eps*min(pos,neg)/l*|f'(w0)|_1,
      where f is the primal function (default 0.01)
  -s 12 and 13
      |f'(alpha)|_1 <= eps |f'(alpha0)|,
      where f is the dual function (default 0.1)`

const trainExample = `  # 5-fold cross validation of L1-regularized logistic regression
  train -s 6 -v 5 data.txt

  # search the best C, starting from a small C
  train -C -s 6 data.txt

  # one model per C along a regularization path
  train -s 6 --path 0.01,0.1,1,10 data.txt data.model`

// maxC bounds the parameter search
const maxC = 1024.0

type trainFlags struct {
	solver  int
	c       float64
	p       float64
	eps     float64
	bias    float64
	weights []string
	nrFold  int
	findC   bool
	quiet   bool
	path    []string
	seed    int64
}

func (f *trainFlags) addFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&f.solver, "solver", "s", liblinear.L2R_L2LOSS_SVC_DUAL.ID(), "set type of solver")
	fs.Float64VarP(&f.c, "cost", "c", 1, "set the parameter C")
	fs.Float64VarP(&f.p, "svr-epsilon", "p", 0.1, "set the epsilon in loss function of SVR")
	fs.Float64VarP(&f.eps, "epsilon", "e", 0, "set tolerance of termination criterion (0 selects the solver default)")
	fs.Float64VarP(&f.bias, "bias", "B", -1, "if bias >= 0, instance x becomes [x; bias]; if < 0, no bias term added")
	fs.StringArrayVarP(&f.weights, "weight", "w", nil, "label:weight, multiplies C of the class with that label; may be repeated")
	fs.IntVarP(&f.nrFold, "cross-validation", "v", 0, "n-fold cross validation mode")
	fs.BoolVarP(&f.findC, "find-c", "C", false, "find parameter C (only for -s 0, 2 and 6)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "quiet mode (no outputs)")
	fs.StringSliceVar(&f.path, "path", nil, "comma separated, non-decreasing list of C values; trains one L1R_LR model per C (only for -s 6)")
	fs.Int64Var(&f.seed, "seed", 1, "seed of the random shuffles")
}

type trainOptions struct {
	Param           *liblinear.Parameter
	Bias            float64
	FindC           bool
	CSpecified      bool
	EpsSpecified    bool
	SolverSpecified bool
	CrossValidation bool
	NrFold          int
	Path            []float64
	Quiet           bool

	InputFilename string
	ModelFilename string

	Out    io.Writer
	Logger zerolog.Logger
}

func (f *trainFlags) toOptions(fs *pflag.FlagSet, args []string, out io.Writer, errOut io.Writer) (*trainOptions, error) {
	solverType, err := liblinear.SolverTypeByID(f.solver)
	if err != nil {
		return nil, err
	}

	o := &trainOptions{
		Param:           liblinear.NewParameter(solverType, f.c, f.eps, f.p, liblinear.DefaultMaxIters),
		Bias:            f.bias,
		FindC:           f.findC,
		CSpecified:      fs.Changed("cost"),
		EpsSpecified:    fs.Changed("epsilon"),
		SolverSpecified: fs.Changed("solver"),
		CrossValidation: fs.Changed("cross-validation"),
		NrFold:          f.nrFold,
		Quiet:           f.quiet,
		InputFilename:   args[0],
		Out:             out,
	}
	o.Param.Seed = f.seed

	if len(args) > 1 {
		o.ModelFilename = args[1]
	} else {
		o.ModelFilename = filepath.Base(args[0]) + ".model"
	}

	if len(f.weights) > 0 {
		weights := make([]float64, len(f.weights))
		labels := make([]int, len(f.weights))
		for i, value := range f.weights {
			if labels[i], weights[i], err = parseWeight(value); err != nil {
				return nil, err
			}
		}
		if err := o.Param.SetWeights(weights, labels); err != nil {
			return nil, err
		}
	}

	for _, value := range f.path {
		c, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "--path value %q", value)
		}
		o.Path = append(o.Path, c)
	}

	o.Logger = zerolog.New(zerolog.ConsoleWriter{Out: errOut, NoColor: true}).With().Timestamp().Logger()
	if o.Quiet {
		o.Logger = o.Logger.Level(zerolog.WarnLevel)
	}
	return o, nil
}

// parseWeight parses a label:weight pair
func parseWeight(value string) (int, float64, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Newf("weight %q is not label:weight", value)
	}
	label, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "weight label %q", parts[0])
	}
	weight, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "weight %q", parts[1])
	}
	return label, weight, nil
}

// Complete fills in the settings implied by other flags
func (o *trainOptions) Complete() {
	if !o.FindC {
		return
	}
	if !o.CrossValidation {
		o.NrFold = 5
	}
	if !o.SolverSpecified {
		o.Logger.Info().Msg("Solver not specified. Using -s 2")
		o.Param.SolverType = liblinear.L2R_L2LOSS_SVC
		if !o.EpsSpecified {
			o.Param.Eps = liblinear.L2R_L2LOSS_SVC.DefaultEps()
		}
	}
}

// Validate rejects flag combinations that do not make sense together
func (o *trainOptions) Validate() error {
	if o.CrossValidation && o.NrFold < 2 {
		return errors.New("n-fold cross validation: n must >= 2")
	}
	if len(o.Path) > 0 && (o.FindC || o.CrossValidation) {
		return errors.New("--path cannot be combined with -C or -v")
	}
	return nil
}

func (o *trainOptions) Run() error {
	liblinear.SetLogger(o.Logger)
	liblinear.SetQuiet(o.Quiet)

	prob, err := liblinear.ReadProblemFile(o.InputFilename, o.Bias)
	if err != nil {
		return err
	}
	o.Logger.Debug().Int("l", prob.L).Int("n", prob.N).Msg("problem read")

	switch {
	case o.FindC:
		return o.findParameterC(prob)
	case o.CrossValidation:
		return o.crossValidation(prob)
	case len(o.Path) > 0:
		return o.trainPath(prob)
	}

	model, err := liblinear.Train(prob, o.Param)
	if err != nil {
		return err
	}
	if err := liblinear.SaveModelFile(o.ModelFilename, model); err != nil {
		return errors.Wrapf(err, "can't save model to file %s", o.ModelFilename)
	}
	return nil
}

func (o *trainOptions) crossValidation(prob *liblinear.Problem) error {
	target, err := liblinear.CrossValidation(prob, o.Param, o.NrFold)
	if err != nil {
		return err
	}

	if o.Param.SolverType.IsSupportVectorRegression() {
		mse, scc := liblinear.RegressionMetrics(target, prob.Y)
		o.printf("Cross Validation Mean squared error = %g\n", mse)
		o.printf("Cross Validation Squared correlation coefficient = %g\n", scc)
	} else {
		o.printf("Cross Validation Accuracy = %g%%\n", 100*liblinear.Accuracy(target, prob.Y))
	}
	return nil
}

func (o *trainOptions) findParameterC(prob *liblinear.Problem) error {
	startC := -1.0
	if o.CSpecified {
		startC = o.Param.C
	}

	result, err := liblinear.FindParameterC(prob, o.Param, o.NrFold, startC, maxC)
	if err != nil {
		return err
	}
	o.printf("Best C = %g  CV accuracy = %g%%\n", result.BestC, 100*result.BestRate)
	return nil
}

func (o *trainOptions) trainPath(prob *liblinear.Problem) error {
	models, err := liblinear.TrainPath(prob, o.Param, o.Path)
	if err != nil {
		return err
	}
	for k, model := range models {
		filename := fmt.Sprintf("%s.%d", o.ModelFilename, k)
		if err := liblinear.SaveModelFile(filename, model); err != nil {
			return errors.Wrapf(err, "can't save model to file %s", filename)
		}
		o.Logger.Info().Float64("C", o.Path[k]).Str("file", filename).Msg("model saved")
	}
	return nil
}

func (o *trainOptions) printf(format string, args ...interface{}) {
	if !o.Quiet {
		fmt.Fprintf(o.Out, format, args...)
	}
}

// NewCmdTrain builds the train command
func NewCmdTrain(out io.Writer, errOut io.Writer) *cobra.Command {
	flags := &trainFlags{}

	cmd := &cobra.Command{
		Use:           "train [options] training_set_file [model_file]",
		Short:         "Trains a liblinear model",
		Long:          trainLong,
		Example:       trainExample,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := flags.toOptions(c.Flags(), args, out, errOut)
			if err != nil {
				return err
			}
			opts.Complete()
			if err := opts.Validate(); err != nil {
				return err
			}
			return opts.Run()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	flags.addFlags(cmd.Flags())
	return cmd
}

func main() {
	if err := NewCmdTrain(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
