package dashboard

import (
	"math"
	"sort"
	"strconv"
)

// SummaryConfig sizes the aggregates.
type SummaryConfig struct {
	TopProfessions       int
	HistogramBins        int
	MinProfessionSamples int
	PreviewRows          int
}

// DefaultSummaryConfig matches the dashboard defaults.
var DefaultSummaryConfig = SummaryConfig{
	TopProfessions:       10,
	HistogramBins:        20,
	MinProfessionSamples: 2,
	PreviewRows:          20,
}

// Count is a category with its number of postings.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Mean is a category with its mean salary.
type Mean struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Bin is one right-closed histogram interval (Lower, Upper].
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// PreviewRow is the table projection shown under the charts.
type PreviewRow struct {
	Profession     string  `json:"profession"`
	Region         string  `json:"region"`
	SalaryAvg      float64 `json:"salary_avg"`
	Experience     string  `json:"experience"`
	EmploymentType string  `json:"employment_type"`
}

// Summary holds every aggregate rendered for one filter selection.
type Summary struct {
	Count            int          `json:"count"`
	TopProfessions   []Count      `json:"top_professions"`
	Histogram        []Bin        `json:"salary_histogram"`
	MeanByRegion     []Mean       `json:"mean_salary_by_region"`
	MeanByExperience []Mean       `json:"mean_salary_by_experience"`
	Employment       []Count      `json:"employment_distribution"`
	TopPaid          *Mean        `json:"top_paid_profession"`
	Preview          []PreviewRow `json:"preview"`
}

// Summarize aggregates rows. Rows with an empty category value are left out
// of that category's aggregate but still counted and charted elsewhere.
func Summarize(rows []Row, cfg SummaryConfig) Summary {
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = DefaultSummaryConfig.HistogramBins
	}
	s := Summary{
		Count:            len(rows),
		TopProfessions:   counts(rows, func(r Row) string { return r.Profession }),
		Histogram:        Histogram(salaries(rows), cfg.HistogramBins),
		MeanByRegion:     means(rows, func(r Row) string { return r.Region }),
		MeanByExperience: means(rows, func(r Row) string { return r.Experience }),
		Employment:       counts(rows, func(r Row) string { return r.EmploymentType }),
		TopPaid:          topPaid(rows, cfg.MinProfessionSamples),
	}
	if cfg.TopProfessions > 0 && len(s.TopProfessions) > cfg.TopProfessions {
		s.TopProfessions = s.TopProfessions[:cfg.TopProfessions]
	}

	n := len(rows)
	if cfg.PreviewRows >= 0 && n > cfg.PreviewRows {
		n = cfg.PreviewRows
	}
	s.Preview = make([]PreviewRow, 0, n)
	for _, r := range rows[:n] {
		s.Preview = append(s.Preview, PreviewRow{
			Profession:     r.Profession,
			Region:         r.Region,
			SalaryAvg:      r.Salary,
			Experience:     r.Experience,
			EmploymentType: r.EmploymentType,
		})
	}
	return s
}

// Histogram splits values into equal-width right-closed bins spanning
// [min, max]. The lowest edge is pushed down by 0.1% of the range so the
// minimum falls inside the first bin. A zero range is widened by 0.1% of the
// value on each side.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 || bins <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	edges := make([]float64, bins+1)
	if lo == hi {
		pad := 0.001 * math.Abs(lo)
		if lo == 0 {
			pad = 0.001
		}
		lo, hi = lo-pad, hi+pad
		linspace(edges, lo, hi)
	} else {
		linspace(edges, lo, hi)
		edges[0] -= (hi - lo) * 0.001
	}

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lower: edges[i], Upper: edges[i+1], Label: binLabel(edges[i], edges[i+1])}
	}
	upper := edges[1:]
	for _, v := range values {
		i := sort.SearchFloat64s(upper, v)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

func linspace(dst []float64, lo, hi float64) {
	n := len(dst) - 1
	step := (hi - lo) / float64(n)
	for i := range dst {
		dst[i] = lo + step*float64(i)
	}
	dst[n] = hi
}

func binLabel(lo, hi float64) string {
	return "(" + strconv.FormatFloat(lo, 'f', 1, 64) + ", " + strconv.FormatFloat(hi, 'f', 1, 64) + "]"
}

func salaries(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Salary
	}
	return out
}

// counts orders categories by count descending, then name ascending.
func counts(rows []Row, key func(Row) string) []Count {
	m := make(map[string]int)
	for _, r := range rows {
		if k := key(r); k != "" {
			m[k]++
		}
	}
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Name: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// means orders categories by mean salary descending, then name ascending.
func means(rows []Row, key func(Row) string) []Mean {
	type acc struct {
		sum float64
		n   int
	}
	m := make(map[string]*acc)
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		a, ok := m[k]
		if !ok {
			a = &acc{}
			m[k] = a
		}
		a.sum += r.Salary
		a.n++
	}
	out := make([]Mean, 0, len(m))
	for k, a := range m {
		out = append(out, Mean{Name: k, Mean: a.sum / float64(a.n), Count: a.n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func topPaid(rows []Row, minSamples int) *Mean {
	for _, m := range means(rows, func(r Row) string { return r.Profession }) {
		if m.Count >= minSamples {
			m := m
			return &m
		}
	}
	return nil
}
