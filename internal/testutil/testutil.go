// Package testutil holds helpers shared by the tests of this module.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteToFile writes an array of lines to a file
func WriteToFile(file *os.File, lines []string) error {
	for _, line := range lines {
		if _, err := file.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// TempFile writes lines to a new file in a per-test directory and returns
// its path.
func TempFile(t testing.TB, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteToFile(f, lines))
	require.NoError(t, f.Close())
	return path
}

// RandomProblemLines generates l svmlight lines over n features with labels
// drawn from 0..numClasses-1. Every row has at least one feature.
func RandomProblemLines(seed int64, l int, n int, numClasses int) []string {
	random := rand.New(rand.NewSource(seed))
	lines := make([]string, l)
	for i := range lines {
		indices := make(map[int]struct{})
		num := random.Intn(n) + 1
		for j := 0; j < num; j++ {
			indices[random.Intn(n)+1] = struct{}{}
		}
		sorted := make([]int, 0, len(indices))
		for k := range indices {
			sorted = append(sorted, k)
		}
		sort.Ints(sorted)

		var b strings.Builder
		fmt.Fprintf(&b, "%d", random.Intn(numClasses))
		for _, idx := range sorted {
			fmt.Fprintf(&b, " %d:%g", idx, random.Float64())
		}
		lines[i] = b.String()
	}
	return lines
}

// SeparableProblemLines generates a linearly separable problem: class c has
// a strong value on feature c+1 and small noise on the other features.
func SeparableProblemLines(seed int64, perClass int, numClasses int, noiseFeatures int) []string {
	random := rand.New(rand.NewSource(seed))
	n := numClasses + noiseFeatures
	lines := make([]string, 0, perClass*numClasses)
	for i := 0; i < perClass; i++ {
		for c := 0; c < numClasses; c++ {
			var b strings.Builder
			fmt.Fprintf(&b, "%d", c+1)
			for j := 1; j <= n; j++ {
				v := 0.1 * random.Float64()
				if j == c+1 {
					v = 1 + random.Float64()
				}
				fmt.Fprintf(&b, " %d:%g", j, v)
			}
			lines = append(lines, b.String())
		}
	}
	return lines
}
