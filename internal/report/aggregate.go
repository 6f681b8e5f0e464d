package report

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// unknownGroup buckets records whose grouping field is absent or empty.
const unknownGroup = "Unknown"

// Group partitions records by the string form of a field value. Every input
// record lands in exactly one bucket.
func Group(records []Record, field string) map[string][]Record {
	groups := map[string][]Record{}
	for _, rec := range records {
		key := unknownGroup
		if value, ok := rec[field]; ok && value != nil {
			if s := fmt.Sprintf("%v", value); s != "" {
				key = s
			}
		}
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// Calculate applies each named calculation to the record set. Records whose
// field is absent, nil or non-numeric are skipped; an empty contributing set
// yields 0 for every operation. Unknown operations are skipped.
func Calculate(records []Record, calcs map[string]Calculation) Aggregate {
	out := Aggregate{Records: records, Metrics: map[string]float64{}}
	if out.Records == nil {
		out.Records = []Record{}
	}
	for name, calc := range calcs {
		var values []float64
		for _, rec := range records {
			if v, ok := numericValue(rec[calc.Field]); ok {
				values = append(values, v)
			}
		}
		metric, ok := apply(calc.Operation, values)
		if !ok {
			continue
		}
		out.Metrics[name] = metric
	}
	return out
}

func apply(operation string, values []float64) (float64, bool) {
	switch operation {
	case "count":
		return float64(len(values)), true
	case "sum", "avg", "max", "min":
	default:
		return 0, false
	}
	if len(values) == 0 {
		return 0, true
	}
	switch operation {
	case "sum", "avg":
		var sum float64
		for _, v := range values {
			sum += v
		}
		if operation == "avg" {
			return sum / float64(len(values)), true
		}
		return sum, true
	case "max":
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	default:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, v != 0
	case float32:
		return float64(v), v != 0
	case int:
		return float64(v), v != 0
	case int64:
		return float64(v), v != 0
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && f != 0
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil && f != 0
	}
	return 0, false
}
