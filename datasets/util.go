package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	featuresSuffix = "_X.tensor"
	labelsSuffix   = "_y.tensor"
)

// tensorPair is the feature and label file of one subject.
type tensorPair struct {
	Subject  string
	Features string
	Labels   string
}

// findTensorPairs lists the subjects in dir that have both a feature and a
// label tensor, sorted by subject.
func findTensorPairs(dir string) ([]tensorPair, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+featuresSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var pairs []tensorPair
	for _, x := range matches {
		subject := strings.TrimSuffix(filepath.Base(x), featuresSuffix)
		y := filepath.Join(dir, subject+labelsSuffix)
		if _, err := os.Stat(y); err != nil {
			return nil, fmt.Errorf("labels for %s: %w", subject, err)
		}
		pairs = append(pairs, tensorPair{Subject: subject, Features: x, Labels: y})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no tensor files found in %s", dir)
	}
	return pairs, nil
}
