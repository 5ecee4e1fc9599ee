package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ReadClassNames parses the label side-car. Three shapes are accepted:
//
//	["belum_matang", "matang", "setengah_matang"]
//	{"classes": ["belum_matang", "matang", "setengah_matang"]}
//	{"belum_matang": 0, "matang": 1, "setengah_matang": 2}
//
// A missing file is reported with an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadClassNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	classes, err := parseClassNames(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidLabelMap, path, err)
	}
	return classes, nil
}

func parseClassNames(data []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return nonEmpty(list)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err == nil && len(meta.Classes) > 0 {
		return nonEmpty(meta.Classes)
	}

	var indices map[string]int
	if err := json.Unmarshal(data, &indices); err != nil {
		return nil, fmt.Errorf("expected a list of class names, a metadata object or a class index map")
	}
	return invertIndices(indices)
}

func invertIndices(indices map[string]int) ([]string, error) {
	type pair struct {
		name string
		idx  int
	}
	pairs := make([]pair, 0, len(indices))
	for name, idx := range indices {
		pairs = append(pairs, pair{name, idx})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].idx < pairs[j].idx })

	classes := make([]string, len(pairs))
	for i, p := range pairs {
		if p.idx != i {
			return nil, fmt.Errorf("class indices must be 0..%d without gaps", len(pairs)-1)
		}
		classes[i] = p.name
	}
	return nonEmpty(classes)
}

func nonEmpty(classes []string) ([]string, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class names")
	}
	return classes, nil
}
