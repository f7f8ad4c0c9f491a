package liblinear

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// SaveModel writes model in the liblinear text format
func SaveModel(writer io.Writer, model *Model) error {
	w := bufio.NewWriter(writer)

	nrFeature := model.NumFeatures
	wSize := model.wSize()
	nrW := model.nrW()

	if len(model.W) < wSize*nrW {
		return errors.Wrapf(ErrMalformedModel, "%d weights for %d features and %d classes", len(model.W), wSize, nrW)
	}

	w.WriteString("solver_type " + model.SolverType.Name() + "\n")
	w.WriteString("nr_class " + strconv.Itoa(model.NumClass) + "\n")

	if model.Label != nil {
		w.WriteString("label")
		for i := 0; i < model.NumClass; i++ {
			w.WriteString(" " + strconv.Itoa(model.Label[i]))
		}
		w.WriteString("\n")
	}

	w.WriteString("nr_feature " + strconv.Itoa(nrFeature) + "\n")
	w.WriteString("bias " + strconv.FormatFloat(model.Bias, 'g', 16, 64) + "\n")

	w.WriteString("w\n")
	for i := 0; i < wSize; i++ {
		for j := 0; j < nrW; j++ {
			value := model.W[i*nrW+j]
			if value == 0 {
				w.WriteString("0 ")
			} else {
				w.WriteString(strconv.FormatFloat(value, 'g', 16, 64) + " ")
			}
		}
		w.WriteString("\n")
	}

	return errors.Wrap(w.Flush(), "writing model")
}

// SaveModelFile writes model to filename
func SaveModelFile(filename string, model *Model) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating model file %s", filename)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing model file %s", filename)
		}
	}()
	return SaveModel(f, model)
}

// LoadModel reads a model written by SaveModel
func LoadModel(reader io.Reader) (*Model, error) {
	var (
		bias       float64
		solverType *SolverType
		nrClass    = -1
		nrFeature  = -1
		label      []int
		sawW       bool
	)

	r := bufio.NewReader(reader)

header:
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "reading model header")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}

		switch fields[0] {
		case "solver_type":
			if len(fields) != 2 {
				return nil, errors.Wrapf(ErrMalformedModel, "solver_type line: %q", line)
			}
			if solverType, err = SolverTypeByName(fields[1]); err != nil {
				return nil, err
			}

		case "nr_class":
			if nrClass, err = parseHeaderInt(fields); err != nil {
				return nil, err
			}

		case "nr_feature":
			if nrFeature, err = parseHeaderInt(fields); err != nil {
				return nil, err
			}

		case "bias":
			if len(fields) != 2 {
				return nil, errors.Wrapf(ErrMalformedModel, "bias line: %q", line)
			}
			if bias, err = strconv.ParseFloat(fields[1], 64); err != nil {
				return nil, errors.Wrapf(ErrMalformedModel, "bias %q", fields[1])
			}

		case "label":
			if nrClass < 0 || len(fields) != nrClass+1 {
				return nil, errors.Wrapf(ErrMalformedModel, "label line does not match nr_class %d: %q", nrClass, line)
			}
			label = make([]int, nrClass)
			for i := range label {
				if label[i], err = strconv.Atoi(fields[i+1]); err != nil {
					return nil, errors.Wrapf(ErrMalformedModel, "label %q", fields[i+1])
				}
			}

		case "w":
			sawW = true
			break header

		default:
			return nil, errors.Wrapf(ErrMalformedModel, "unknown text in model file: [%s]", strings.TrimSpace(line))
		}

		if err == io.EOF {
			break
		}
	}

	switch {
	case !sawW:
		return nil, errors.Wrap(ErrMalformedModel, "missing weights")
	case solverType == nil:
		return nil, errors.Wrap(ErrMalformedModel, "missing solver_type")
	case nrClass < 1:
		return nil, errors.Wrap(ErrMalformedModel, "missing nr_class")
	case nrFeature < 0:
		return nil, errors.Wrap(ErrMalformedModel, "missing nr_feature")
	case label == nil && !solverType.IsSupportVectorRegression():
		return nil, errors.Wrap(ErrMalformedModel, "missing label")
	}

	model := NewModel(bias, label, nrClass, nrFeature, solverType, nil)
	if err := checkProblemSize(model.wSize(), model.nrW()); err != nil {
		return nil, errors.Mark(err, ErrMalformedModel)
	}
	model.W = make([]float64, model.wSize()*model.nrW())

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	for i := range model.W {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, errors.Wrap(err, "reading model weights")
			}
			return nil, errors.Wrapf(ErrMalformedModel, "expected %d weights, found %d", len(model.W), i)
		}
		value, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedModel, "illegal weight %q at index %d", scanner.Text(), i)
		}
		model.W[i] = value
	}

	return model, nil
}

// LoadModelFile reads the model stored in filename
func LoadModelFile(filename string) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model file %s", filename)
	}
	defer f.Close()
	return LoadModel(f)
}

func parseHeaderInt(fields []string) (int, error) {
	if len(fields) != 2 {
		return 0, errors.Wrapf(ErrMalformedModel, "%s line: %q", fields[0], strings.Join(fields, " "))
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil || v < 0 {
		return 0, errors.Wrapf(ErrMalformedModel, "%s %q", fields[0], fields[1])
	}
	return v, nil
}
