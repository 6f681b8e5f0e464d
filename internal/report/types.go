package report

import "time"

// DataSource names one entity queried by a template and the fields to fetch.
type DataSource struct {
	Entity string   `json:"entity"`
	Fields []string `json:"fields,omitempty"`
}

// Grouping buckets one source's records by a field value.
type Grouping struct {
	Field string `json:"field"`
}

// Calculation is a named aggregate over one source's records.
type Calculation struct {
	Field     string `json:"field"`
	Operation string `json:"operation"` // sum | avg | count | max | min
}

// Template is a declarative report definition. Map keys in Filters, Grouping
// and Calculations refer to DataSources keys; entries pointing at unknown
// sources are ignored.
type Template struct {
	ID              string                            `json:"template_id"`
	Name            string                            `json:"name"`
	Description     string                            `json:"description,omitempty"`
	Category        string                            `json:"category,omitempty"`
	DataSources     map[string]DataSource             `json:"data_sources"`
	Filters         map[string]map[string]any         `json:"filters,omitempty"`
	Grouping        map[string]Grouping               `json:"grouping,omitempty"`
	Calculations    map[string]map[string]Calculation `json:"calculations,omitempty"`
	NarrationPrompt string                            `json:"narration_prompt,omitempty"`
	OutputFormat    string                            `json:"output_format,omitempty"`
	Active          bool                              `json:"is_active"`
	UsageCount      int                               `json:"usage_count"`
	CreatedAt       time.Time                         `json:"created_at,omitempty"`
}

// Record is one row returned by a data source query.
type Record = map[string]any

// Aggregate is the calculated view of one record set.
type Aggregate struct {
	Records []Record           `json:"records"`
	Metrics map[string]float64 `json:"metrics"`
}

// Report is one generated report instance.
type Report struct {
	TemplateID   string            `json:"template_id"`
	TemplateName string            `json:"template"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Data         map[string]any    `json:"raw_data"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
	Narration    string            `json:"narration,omitempty"`
	OutputFormat string            `json:"output_format,omitempty"`
}
