package output

import (
	"bytes"
	"strings"
)

// VolatileFields are the report members that change between two renders of
// the same data, in dot notation.
var VolatileFields = []string{
	"generatedAt",
	"source.capturedAt",
}

// StripVolatile drops VolatileFields from a JSON report and returns it in
// canonical form.
func StripVolatile(report []byte) ([]byte, error) {
	tree, err := decodeTree(report)
	if err != nil {
		return nil, err
	}
	if obj, ok := tree.(map[string]interface{}); ok {
		for _, path := range VolatileFields {
			deletePath(obj, strings.Split(path, "."))
		}
	}
	return DeterministicEncode(tree)
}

// CompareSnapshots reports whether two JSON reports carry the same data. When
// they do not, the string says why.
func CompareSnapshots(a, b []byte) (bool, string) {
	left, err := StripVolatile(a)
	if err != nil {
		return false, "first report is not valid JSON: " + err.Error()
	}
	right, err := StripVolatile(b)
	if err != nil {
		return false, "second report is not valid JSON: " + err.Error()
	}
	if !bytes.Equal(left, right) {
		return false, "reports differ"
	}
	return true, ""
}

func deletePath(obj map[string]interface{}, path []string) {
	for len(path) > 1 {
		next, ok := obj[path[0]].(map[string]interface{})
		if !ok {
			return
		}
		obj, path = next, path[1:]
	}
	delete(obj, path[0])
}
