package liblinear

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const maxLineLength = 64 * 1024 * 1024

// ReadProblem reads svmlight formatted data ("label index:value ...").
func ReadProblem(inputStream io.Reader, bias float64) (*Problem, error) {
	scanner := bufio.NewScanner(inputStream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	vy := make([]float64, 0)
	vx := make([][]FeatureNode, 0)
	maxIndex := 0
	lineNr := 0

	for scanner.Scan() {
		lineNr++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			return nil, errors.Wrapf(ErrInvalidProblem, "line %d: empty line", lineNr)
		}

		label, x, err := parseInstance(tokens)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNr)
		}
		if m := len(x); m > 0 && x[m-1].Index > maxIndex {
			maxIndex = x[m-1].Index
		}

		vy = append(vy, label)
		vx = append(vx, x)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading problem")
	}

	return ConstructProblem(vy, vx, maxIndex, bias)
}

// ReadProblemFile reads svmlight formatted data from a file.
func ReadProblemFile(filename string, bias float64) (*Problem, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	prob, err := ReadProblem(f, bias)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return prob, nil
}

// ParseInstance parses one svmlight line into its label and features.
func ParseInstance(line string) (float64, []FeatureNode, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return 0, nil, errors.Wrap(ErrInvalidProblem, "empty line")
	}
	return parseInstance(tokens)
}

func parseInstance(tokens []string) (float64, []FeatureNode, error) {
	label, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrInvalidProblem, "invalid label %q", tokens[0])
	}

	x := make([]FeatureNode, 0, len(tokens)-1)
	indexBefore := 0
	for _, token := range tokens[1:] {
		keyVal := strings.SplitN(token, ":", 2)
		if len(keyVal) != 2 {
			return 0, nil, errors.Wrapf(ErrInvalidProblem, "token %q is not index:value", token)
		}

		index, err := strconv.Atoi(keyVal[0])
		if err != nil || index < 1 {
			return 0, nil, errors.Wrapf(ErrInvalidFeatureIndex, "index %q", keyVal[0])
		}
		if index <= indexBefore {
			return 0, nil, errors.Wrapf(ErrInvalidProblem, "indices must be ascending, %d after %d", index, indexBefore)
		}
		indexBefore = index

		value, err := strconv.ParseFloat(keyVal[1], 64)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrInvalidProblem, "value %q", keyVal[1])
		}

		x = append(x, NewFeatureNode(index, value))
	}

	return label, x, nil
}
