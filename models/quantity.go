package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/thukatech/restock_backend/utils"
)

// TotalSizeKey is the synthetic size key used by logs without sizes, and the
// fold-in bucket when an unsized log is merged into a sized one.
const TotalSizeKey = "Total"

// QuantityMap maps a size key ("S", "M", "40", or TotalSizeKey) to a piece
// count. Stored as a JSON column.
type QuantityMap map[string]int

func (m QuantityMap) Value() (driver.Value, error) {
	if m == nil {
		m = QuantityMap{}
	}
	return json.Marshal(m)
}

func (m *QuantityMap) Scan(value interface{}) error {
	if value == nil {
		*m = QuantityMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into QuantityMap", value)
	}
}

func (m QuantityMap) Sum() int {
	total := 0
	for _, qty := range m {
		total += qty
	}
	return total
}

func (m QuantityMap) Clone() QuantityMap {
	out := make(QuantityMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AddAll returns a new map holding the per-key sum of m and other.
func (m QuantityMap) AddAll(other QuantityMap) QuantityMap {
	out := m.Clone()
	for k, v := range other {
		out[k] += v
	}
	return out
}

// WithoutZeros returns a copy dropping keys whose quantity is zero or less.
func (m QuantityMap) WithoutZeros() QuantityMap {
	out := make(QuantityMap, len(m))
	for k, v := range m {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// SortedKeys returns the size keys in a stable display order: real sizes
// alphabetically, the synthetic Total bucket last.
func (m QuantityMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == TotalSizeKey {
			return false
		}
		if keys[j] == TotalSizeKey {
			return true
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Describe renders a human-readable per-size breakdown, e.g. "S:5, M:3".
func (m QuantityMap) Describe() string {
	if len(m) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(m))
	for _, k := range m.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// Validate rejects malformed caller quantities: empty keys and negative
// counts. Zero counts are allowed (a size can be explicitly skipped).
func (m QuantityMap) Validate() error {
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			return &utils.ValidationError{Field: "quantities", Reason: "empty size key"}
		}
		if v < 0 {
			return &utils.ValidationError{Field: "quantities", Reason: fmt.Sprintf("negative quantity for %q", k)}
		}
	}
	return nil
}

// normalizeQuantities maps caller input onto the log's size mode: unsized
// logs collapse everything into the Total bucket.
func normalizeQuantities(input QuantityMap, hasSizes bool) QuantityMap {
	if hasSizes {
		return input.WithoutZeros()
	}
	return QuantityMap{TotalSizeKey: input.Sum()}.WithoutZeros()
}
