package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GoldItem is one reference question/answer pair. Facts are optional
// supporting citations the reference answer draws on, carried through
// to run results for traceability.
type GoldItem struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Facts    []string `yaml:"facts,omitempty"`
}

// GoldSet is an ordered gold QA set loaded from YAML.
type GoldSet struct {
	// ID identifies the set in runs and labels; derived from the file
	// name.
	ID    string
	Items []GoldItem
}

type goldFile struct {
	QA []GoldItem `yaml:"qa"`
}

// LoadGoldSet reads a gold YAML file of the form:
//
//	qa:
//	  - question: "..."
//	    answer: "..."
//
// Item order is preserved. A file with no usable items is an error.
func LoadGoldSet(path string) (*GoldSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold file: %w", err)
	}

	var file goldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse gold file %s: %w", path, err)
	}

	items := make([]GoldItem, 0, len(file.QA))
	for i, item := range file.QA {
		if strings.TrimSpace(item.Question) == "" {
			return nil, fmt.Errorf("gold file %s: item %d has no question", path, i)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("gold file %s contains no qa items", path)
	}

	base := filepath.Base(path)
	return &GoldSet{
		ID:    strings.TrimSuffix(base, filepath.Ext(base)),
		Items: items,
	}, nil
}
