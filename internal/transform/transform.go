// Package transform flattens raw vacancy documents into analytic records.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// Stats counts documents seen by one Transform call.
type Stats struct {
	Read      int
	Flattened int
	Skipped   int
}

// Transformer reads the whole raw store and flattens it.
type Transformer struct {
	store  vacancy.RawStore
	logger *zap.Logger
}

// New builds a Transformer.
func New(store vacancy.RawStore, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{store: store, logger: logger}
}

// Transform flattens every stored document. A document that cannot be decoded
// is skipped and counted. An empty store yields vacancy.ErrEmptyDataset.
func (t *Transformer) Transform(ctx context.Context) ([]vacancy.FlatVacancy, Stats, error) {
	var (
		rows  []vacancy.FlatVacancy
		stats Stats
	)
	err := t.store.Scan(ctx, func(doc json.RawMessage) error {
		stats.Read++
		var raw vacancy.RawVacancy
		if err := json.Unmarshal(doc, &raw); err != nil {
			stats.Skipped++
			t.logger.Warn("skipping undecodable raw document", zap.Int("position", stats.Read), zap.Error(err))
			return nil
		}
		rows = append(rows, Flatten(raw))
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("read raw store: %w", err)
	}
	stats.Flattened = len(rows)
	metrics.ObserveTransform(stats.Flattened, stats.Skipped)

	if stats.Read == 0 {
		return nil, stats, vacancy.ErrEmptyDataset
	}
	t.logger.Info("raw documents flattened",
		zap.Int("read", stats.Read),
		zap.Int("flattened", stats.Flattened),
		zap.Int("skipped", stats.Skipped),
	)
	return rows, stats, nil
}

// Flatten maps a raw vacancy to the analytic record. Absent nested objects
// yield empty strings (or nil for salary and profession).
func Flatten(v vacancy.RawVacancy) vacancy.FlatVacancy {
	return vacancy.FlatVacancy{
		VacancyID:      clean(v.ID),
		Title:          clean(v.Name),
		Region:         name(v.Area),
		PublishedAt:    strings.TrimSpace(v.PublishedAt),
		SalaryAvg:      AverageSalary(v.Salary),
		Experience:     name(v.Experience),
		EmploymentType: name(v.Employment),
		Schedule:       name(v.Schedule),
		Profession:     Profession(v.ProfessionalRoles),
	}
}

// AverageSalary returns the rouble salary: the midpoint when both bounds are
// present, otherwise the single bound. Other currencies and salaries without
// bounds give nil.
func AverageSalary(s *vacancy.Salary) *float64 {
	if s == nil || s.Currency != vacancy.CurrencyRUB {
		return nil
	}
	var avg float64
	switch {
	case s.From != nil && s.To != nil:
		avg = (*s.From + *s.To) / 2
	case s.From != nil:
		avg = *s.From
	case s.To != nil:
		avg = *s.To
	default:
		return nil
	}
	return &avg
}

// Profession is the name of the first professional role, or nil.
func Profession(roles []vacancy.Named) *string {
	if len(roles) == 0 {
		return nil
	}
	p := clean(roles[0].Name)
	if p == "" {
		return nil
	}
	return &p
}

func name(n *vacancy.Named) string {
	if n == nil {
		return ""
	}
	return clean(n.Name)
}

// clean NFC-normalizes s, so the same Cyrillic label always groups together.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
