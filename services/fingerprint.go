package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// OperationKind namespaces cache keys and telemetry per pipeline operation.
type OperationKind string

const (
	OpStyling       OperationKind = "styling"
	OpImageAnalysis OperationKind = "image-analysis"
)

// Fingerprint derives the cache key for one operation input. The input is
// serialized in canonical form (object keys sorted, scalar lists sorted) so
// that logically identical requests map to the same digest regardless of
// field or list ordering.
func Fingerprint(op OperationKind, userID uint, input any) (string, error) {
	canonical, err := canonicalJSON(input)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %v input: %w", op, err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%d:%s", op, userID, hex.EncodeToString(sum[:])), nil
}

func canonicalJSON(input any) ([]byte, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order, so normalizing scalar
	// lists is the only extra work needed for a canonical form.
	return json.Marshal(normalizeNode(node))
}

func normalizeNode(node any) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			n[k] = normalizeNode(v)
		}
		return n
	case []any:
		for i := range n {
			n[i] = normalizeNode(n[i])
		}
		if allScalars(n) {
			sort.Slice(n, func(i, j int) bool {
				left, _ := json.Marshal(n[i])
				right, _ := json.Marshal(n[j])
				return string(left) < string(right)
			})
		}
		return n
	default:
		return node
	}
}

func allScalars(values []any) bool {
	for _, v := range values {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}
