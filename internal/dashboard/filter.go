package dashboard

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Filter narrows the dataset. Predicates are AND-combined; an empty
// categorical selection does not filter at all. Salary bounds are inclusive.
type Filter struct {
	Regions    []string `json:"regions,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Employment []string `json:"employment,omitempty"`
	SalaryMin  *float64 `json:"salary_min,omitempty"`
	SalaryMax  *float64 `json:"salary_max,omitempty"`
}

// ParseFilter reads repeated region, experience and employment parameters
// plus salary_min and salary_max.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Regions:    nonEmpty(q["region"]),
		Experience: nonEmpty(q["experience"]),
		Employment: nonEmpty(q["employment"]),
	}
	var err error
	if f.SalaryMin, err = parseBound(q.Get("salary_min")); err != nil {
		return Filter{}, fmt.Errorf("salary_min: %w", err)
	}
	if f.SalaryMax, err = parseBound(q.Get("salary_max")); err != nil {
		return Filter{}, fmt.Errorf("salary_max: %w", err)
	}
	return f, nil
}

// Apply returns the rows matching every predicate, in input order.
func (f Filter) Apply(rows []Row) []Row {
	regions := set(f.Regions)
	experience := set(f.Experience)
	employment := set(f.Employment)

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !allowed(regions, r.Region) || !allowed(experience, r.Experience) || !allowed(employment, r.EmploymentType) {
			continue
		}
		if f.SalaryMin != nil && r.Salary < *f.SalaryMin {
			continue
		}
		if f.SalaryMax != nil && r.Salary > *f.SalaryMax {
			continue
		}
		out = append(out, r)
	}
	return out
}

// selected reports whether value is part of the categorical selection.
func selected(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Options lists the choices the dashboard offers for the loaded dataset.
type Options struct {
	Regions    []string `json:"regions"`
	Experience []string `json:"experience"`
	Employment []string `json:"employment"`
	SalaryMin  float64  `json:"salary_min"`
	SalaryMax  float64  `json:"salary_max"`
}

// BuildOptions collects sorted distinct values and whole-rouble salary
// bounds wide enough to include every row.
func BuildOptions(rows []Row) Options {
	opts := Options{
		Regions:    distinct(rows, func(r Row) string { return r.Region }),
		Experience: distinct(rows, func(r Row) string { return r.Experience }),
		Employment: distinct(rows, func(r Row) string { return r.EmploymentType }),
	}
	if len(rows) == 0 {
		return opts
	}
	lo, hi := rows[0].Salary, rows[0].Salary
	for _, r := range rows[1:] {
		lo = math.Min(lo, r.Salary)
		hi = math.Max(hi, r.Salary)
	}
	opts.SalaryMin = math.Floor(lo)
	opts.SalaryMax = math.Ceil(hi)
	return opts
}

func distinct(rows []Row, key func(Row) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseBound(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &v, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func set(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func allowed(m map[string]struct{}, v string) bool {
	if m == nil {
		return true
	}
	_, ok := m[v]
	return ok
}
