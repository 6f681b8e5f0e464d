package report

import (
	"context"
	"log/slog"
	"time"

	"erpai/internal/metrics"
)

// Store is the template store slice the generator needs.
type Store interface {
	GetTemplate(ctx context.Context, id string) (Template, error)
	BumpTemplateUsage(ctx context.Context, id string) error
}

// DataStore reads entity records through the configured allowlist.
type DataStore interface {
	Query(ctx context.Context, entity string, filters map[string]any, fields []string) ([]Record, error)
}

// Narrator turns report data into prose. Optional.
type Narrator interface {
	Narrate(ctx context.Context, promptTemplate string, data any) (string, error)
}

// Generator runs report templates: plan queries, fetch, group, calculate,
// optionally narrate. A failing source is recorded in SourceErrors and the
// rest of the report still completes; a failing narration degrades to a
// report without prose.
type Generator struct {
	Store        Store
	Data         DataStore
	Narrator     Narrator
	QueryTimeout time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Generate runs one template. Overrides are merged into the template filters
// per source before querying.
func (g *Generator) Generate(ctx context.Context, templateID string, overrides map[string]map[string]any, narrate bool) (*Report, error) {
	tmpl, err := g.Store.GetTemplate(ctx, templateID)
	if err != nil {
		metrics.ReportGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	out := &Report{
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		GeneratedAt:  g.now(),
		Data:         map[string]any{},
		OutputFormat: tmpl.OutputFormat,
	}

	for _, q := range Plan(tmpl, overrides) {
		records, err := g.query(ctx, q)
		if err != nil {
			if out.SourceErrors == nil {
				out.SourceErrors = map[string]string{}
			}
			out.SourceErrors[q.Source] = err.Error()
			g.logger().Warn("report source failed", "template_id", tmpl.ID, "source", q.Source, "error", err)
			continue
		}
		out.Data[q.Source] = g.shape(tmpl, q.Source, records)
	}

	if narrate && tmpl.NarrationPrompt != "" && g.Narrator != nil {
		prose, err := g.Narrator.Narrate(ctx, tmpl.NarrationPrompt, out.Data)
		if err != nil {
			metrics.NarrationsTotal.WithLabelValues("error").Inc()
			g.logger().Warn("narration failed", "template_id", tmpl.ID, "error", err)
		} else {
			metrics.NarrationsTotal.WithLabelValues("ok").Inc()
			out.Narration = prose
		}
	}

	if err := g.Store.BumpTemplateUsage(ctx, tmpl.ID); err != nil {
		g.logger().Warn("usage bump failed", "template_id", tmpl.ID, "error", err)
	}
	metrics.ReportGenerationsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func (g *Generator) query(ctx context.Context, q Query) ([]Record, error) {
	if g.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.QueryTimeout)
		defer cancel()
	}
	return g.Data.Query(ctx, q.Entity, q.Filters, q.Fields)
}

// shape applies the template's grouping and calculations to one source's
// records. Grouped sources with calculations return per-group aggregates;
// ungrouped sources with calculations return a single aggregate; sources with
// neither pass the records through unchanged.
func (g *Generator) shape(tmpl Template, source string, records []Record) any {
	grouping, grouped := tmpl.Grouping[source]
	calcs := tmpl.Calculations[source]

	if grouped && grouping.Field != "" {
		groups := Group(records, grouping.Field)
		if len(calcs) == 0 {
			return groups
		}
		shaped := map[string]Aggregate{}
		for key, recs := range groups {
			shaped[key] = Calculate(recs, calcs)
		}
		return shaped
	}
	if len(calcs) > 0 {
		return Calculate(records, calcs)
	}
	if records == nil {
		return []Record{}
	}
	return records
}

// Run adapts the generator to the narrower runner shape used by actions that
// trigger reports: no overrides, narration on, summary as a generic map.
func (g *Generator) Run(ctx context.Context, templateID string) (map[string]any, error) {
	rep, err := g.Generate(ctx, templateID, nil, true)
	if err != nil {
		return nil, err
	}
	summary := map[string]any{
		"template":     rep.TemplateName,
		"generated_at": rep.GeneratedAt.Format(time.RFC3339),
		"raw_data":     rep.Data,
	}
	if rep.Narration != "" {
		summary["narration"] = rep.Narration
	}
	if len(rep.SourceErrors) > 0 {
		summary["source_errors"] = rep.SourceErrors
	}
	return summary, nil
}
