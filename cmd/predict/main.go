package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"limhan.info/l1path/liblinear"
)

// PredictResult collects the predictions of one DoPredict run
type PredictResult struct {
	regression bool
	correct    int
	target     []float64
	predicted  []float64
}

func (r *PredictResult) report(out io.Writer) {
	total := len(r.target)
	if total == 0 {
		return
	}
	if r.regression {
		mse, scc := liblinear.RegressionMetrics(r.predicted, r.target)
		fmt.Fprintf(out, "Mean squared error = %g (regression)\n", mse)
		fmt.Fprintf(out, "Squared correlation coefficient = %g (regression)\n", scc)
		return
	}
	accuracy := liblinear.Accuracy(r.predicted, r.target)
	fmt.Fprintf(out, "Accuracy = %g%% (%d/%d)\n", accuracy*100, r.correct, total)
}

// DoPredict reads svmlight lines from reader and writes one prediction per
// line to writer. With probability set, the first line lists the labels and
// every prediction is followed by the class probabilities.
func DoPredict(reader io.Reader, writer io.Writer, model *liblinear.Model, probability bool) (*PredictResult, error) {
	if probability && !model.IsProbabilityModel() {
		return nil, errors.Wrap(liblinear.ErrNotProbabilityModel, "probability output is only supported for logistic regression")
	}

	w := bufio.NewWriter(writer)
	if probability {
		w.WriteString("labels")
		for _, label := range model.Labels() {
			w.WriteString(" " + strconv.Itoa(label))
		}
		w.WriteString("\n")
	}

	result := &PredictResult{regression: model.IsRegressionModel()}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1<<26)
	lineNr := 0
	for scanner.Scan() {
		lineNr++
		targetLabel, x, err := liblinear.ParseInstance(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "wrong input format at line %d", lineNr)
		}

		var predictLabel float64
		if probability {
			var estimates []float64
			predictLabel, estimates, err = liblinear.PredictProbability(model, x)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNr)
			}
			w.WriteString(strconv.FormatFloat(predictLabel, 'g', -1, 64))
			for _, p := range estimates {
				w.WriteString(" " + strconv.FormatFloat(p, 'g', 6, 64))
			}
			w.WriteString("\n")
		} else {
			predictLabel, err = liblinear.Predict(model, x)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNr)
			}
			w.WriteString(strconv.FormatFloat(predictLabel, 'g', -1, 64) + "\n")
		}

		if predictLabel == targetLabel {
			result.correct++
		}
		result.target = append(result.target, targetLabel)
		result.predicted = append(result.predicted, predictLabel)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading test data")
	}
	if err := w.Flush(); err != nil {
		return nil, errors.Wrap(err, "writing predictions")
	}
	return result, nil
}

type predictFlags struct {
	probability int
	quiet       bool
}

func (f *predictFlags) addFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&f.probability, "probability", "b", 0, "whether to output probability estimates, 0 or 1; for logistic regression only")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "quiet mode (no outputs)")
}

type predictOptions struct {
	TestFilename   string
	ModelFilename  string
	OutputFilename string
	Probability    bool
	Quiet          bool

	Out    io.Writer
	Logger zerolog.Logger
}

func (f *predictFlags) toOptions(args []string, out io.Writer, errOut io.Writer) (*predictOptions, error) {
	if f.probability != 0 && f.probability != 1 {
		return nil, errors.Newf("-b must be 0 or 1, got %d", f.probability)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: errOut, NoColor: true}).With().Timestamp().Logger()
	if f.quiet {
		logger = zerolog.Nop()
	}

	return &predictOptions{
		TestFilename:   args[0],
		ModelFilename:  args[1],
		OutputFilename: args[2],
		Probability:    f.probability == 1,
		Quiet:          f.quiet,
		Out:            out,
		Logger:         logger,
	}, nil
}

func (o *predictOptions) Run() (err error) {
	model, err := liblinear.LoadModelFile(o.ModelFilename)
	if err != nil {
		return errors.Wrapf(err, "can't open model file %s", o.ModelFilename)
	}
	o.Logger.Debug().
		Str("solver", model.SolverType.Name()).
		Int("nr_class", model.NrClass()).
		Int("nr_feature", model.NrFeature()).
		Msg("model loaded")

	input, err := os.Open(o.TestFilename)
	if err != nil {
		return errors.Wrapf(err, "can't open input file %s", o.TestFilename)
	}
	defer input.Close()

	output, err := os.Create(o.OutputFilename)
	if err != nil {
		return errors.Wrapf(err, "can't open output file %s", o.OutputFilename)
	}
	defer func() {
		if cerr := output.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %s", o.OutputFilename)
		}
	}()

	result, err := DoPredict(input, output, model, o.Probability)
	if err != nil {
		return err
	}
	if !o.Quiet {
		result.report(o.Out)
	}
	return nil
}

// NewCmdPredict builds the predict command
func NewCmdPredict(out io.Writer, errOut io.Writer) *cobra.Command {
	flags := &predictFlags{}

	cmd := &cobra.Command{
		Use:           "predict [options] test_file model_file output_file",
		Short:         "Predicts the labels of svmlight data with a liblinear model",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := flags.toOptions(args, out, errOut)
			if err != nil {
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
	if err := NewCmdPredict(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
