package report

// Query is one planned entity read.
type Query struct {
	Source  string
	Entity  string
	Filters map[string]any
	Fields  []string
}

// Plan expands a template into per-source queries. Sources without an entity
// are skipped, runtime overrides shadow template filters key by key, and
// filter entries with empty values are dropped so an unset override never
// becomes an accidental equality match.
func Plan(tmpl Template, overrides map[string]map[string]any) []Query {
	var queries []Query
	for source, ds := range tmpl.DataSources {
		if ds.Entity == "" {
			continue
		}
		filters := map[string]any{}
		for field, value := range tmpl.Filters[source] {
			filters[field] = value
		}
		for field, value := range overrides[source] {
			filters[field] = value
		}
		for field, value := range filters {
			if isEmptyFilter(value) {
				delete(filters, field)
			}
		}
		queries = append(queries, Query{
			Source:  source,
			Entity:  ds.Entity,
			Filters: filters,
			Fields:  append([]string(nil), ds.Fields...),
		})
	}
	return queries
}

func isEmptyFilter(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	}
	return false
}
