package report

import "testing"

func TestGroupByField(t *testing.T) {
	records := []Record{
		{"status": "open", "amount": 10.0},
		{"status": "open", "amount": 20.0},
		{"status": "closed", "amount": 5.0},
		{"amount": 7.0},
		{"status": nil, "amount": 9.0},
	}
	groups := Group(records, "status")
	if len(groups["open"]) != 2 || len(groups["closed"]) != 1 {
		t.Fatalf("groups: %#v", groups)
	}
	if len(groups["Unknown"]) != 2 {
		t.Fatalf("unknown bucket: %#v", groups["Unknown"])
	}
	total := 0
	for _, recs := range groups {
		total += len(recs)
	}
	if total != len(records) {
		t.Fatalf("total %d != %d", total, len(records))
	}
}

func TestGroupEmptyStringIsUnknown(t *testing.T) {
	groups := Group([]Record{{"status": ""}}, "status")
	if len(groups["Unknown"]) != 1 {
		t.Fatalf("groups: %#v", groups)
	}
}

func TestCalculateSum(t *testing.T) {
	records := []Record{
		{"amount": 100.0},
		{"amount": 50.0},
		{"other": 1.0},
	}
	agg := Calculate(records, map[string]Calculation{
		"total": {Field: "amount", Operation: "sum"},
	})
	if agg.Metrics["total"] != 150 {
		t.Fatalf("metrics: %#v", agg.Metrics)
	}
	if len(agg.Records) != 3 {
		t.Fatalf("records: %d", len(agg.Records))
	}
}

func TestCalculateAllOperations(t *testing.T) {
	records := []Record{{"v": 2.0}, {"v": 8.0}, {"v": 5.0}}
	agg := Calculate(records, map[string]Calculation{
		"sum":   {Field: "v", Operation: "sum"},
		"avg":   {Field: "v", Operation: "avg"},
		"count": {Field: "v", Operation: "count"},
		"max":   {Field: "v", Operation: "max"},
		"min":   {Field: "v", Operation: "min"},
	})
	want := map[string]float64{"sum": 15, "avg": 5, "count": 3, "max": 8, "min": 2}
	for name, v := range want {
		if agg.Metrics[name] != v {
			t.Fatalf("%s: got %v, want %v", name, agg.Metrics[name], v)
		}
	}
}

func TestCalculateEmptyRecordsZero(t *testing.T) {
	agg := Calculate(nil, map[string]Calculation{
		"total": {Field: "amount", Operation: "sum"},
		"mean":  {Field: "amount", Operation: "avg"},
		"peak":  {Field: "amount", Operation: "max"},
	})
	if agg.Records == nil || len(agg.Records) != 0 {
		t.Fatalf("records: %#v", agg.Records)
	}
	for _, name := range []string{"total", "mean", "peak"} {
		if v, ok := agg.Metrics[name]; !ok || v != 0 {
			t.Fatalf("%s: %v (present %v)", name, v, ok)
		}
	}
}

func TestCalculateSkipsZeroAndMissing(t *testing.T) {
	records := []Record{
		{"amount": 0.0},
		{"amount": nil},
		{},
		{"amount": "not a number"},
		{"amount": 3.0},
	}
	agg := Calculate(records, map[string]Calculation{
		"count": {Field: "amount", Operation: "count"},
		"mean":  {Field: "amount", Operation: "avg"},
	})
	if agg.Metrics["count"] != 1 || agg.Metrics["mean"] != 3 {
		t.Fatalf("metrics: %#v", agg.Metrics)
	}
}

func TestCalculateNumericStrings(t *testing.T) {
	records := []Record{{"amount": "12.5"}, {"amount": 7}}
	agg := Calculate(records, map[string]Calculation{
		"total": {Field: "amount", Operation: "sum"},
	})
	if agg.Metrics["total"] != 19.5 {
		t.Fatalf("metrics: %#v", agg.Metrics)
	}
}

func TestCalculateUnknownOperationSkipped(t *testing.T) {
	agg := Calculate([]Record{{"v": 1.0}}, map[string]Calculation{
		"bad": {Field: "v", Operation: "median"},
	})
	if _, ok := agg.Metrics["bad"]; ok {
		t.Fatalf("metrics: %#v", agg.Metrics)
	}
}
