package dashboard

import (
	"html/template"
	"math"
	"strconv"
	"strings"
)

var templateFuncs = template.FuncMap{
	"selected": selected,
	"rub":      rub,
	"pct":      pct,
	"bound":    bound,
	"maxCount": maxCount,
	"maxMean":  maxMean,
	"maxBin":   maxBin,
}

// rub formats a salary with thin-space thousands separators.
func rub(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-₽" + b.String()
	}
	return "₽" + b.String()
}

// pct scales n against max for bar widths.
func pct(n, max any) string {
	a, b := toFloat(n), toFloat(max)
	if b <= 0 {
		return "0"
	}
	return strconv.FormatFloat(100*a/b, 'f', 1, 64)
}

func bound(p *float64, def float64) string {
	if p != nil {
		return strconv.FormatFloat(*p, 'f', -1, 64)
	}
	return strconv.FormatFloat(def, 'f', -1, 64)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func maxCount(items []Count) int {
	m := 0
	for _, c := range items {
		if c.Count > m {
			m = c.Count
		}
	}
	return m
}

func maxMean(items []Mean) float64 {
	m := 0.0
	for _, c := range items {
		m = math.Max(m, c.Mean)
	}
	return m
}

func maxBin(items []Bin) int {
	m := 0
	for _, c := range items {
		if c.Count > m {
			m = c.Count
		}
	}
	return m
}

const indexTemplate = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>Арктический рынок труда</title>
<style>
body { font-family: sans-serif; margin: 0; display: flex; }
aside { width: 260px; padding: 1rem; background: #f3f5f8; min-height: 100vh; }
main { flex: 1; padding: 1rem 2rem; }
select { width: 100%; min-height: 6rem; }
.grid { display: grid; grid-template-columns: 1fr 1fr; gap: 2rem; }
.bar { background: #4a7bd0; height: 0.9rem; }
table { border-collapse: collapse; width: 100%; }
td, th { padding: 0.2rem 0.5rem; border-bottom: 1px solid #ddd; text-align: left; }
.notice { padding: 1rem; background: #fff4d6; border: 1px solid #e6c200; }
.error { padding: 1rem; background: #fde2e2; border: 1px solid #d33; }
</style>
</head>
<body>
{{- $opts := .Options }}{{ $f := .Filter }}
<aside>
<h2>Фильтры</h2>
<form method="get" action="/">
<label>Регионы<select name="region" multiple>
{{- range $opts.Regions }}<option{{ if selected $f.Regions . }} selected{{ end }}>{{ . }}</option>{{ end -}}
</select></label>
<label>Опыт работы<select name="experience" multiple>
{{- range $opts.Experience }}<option{{ if selected $f.Experience . }} selected{{ end }}>{{ . }}</option>{{ end -}}
</select></label>
<label>Тип занятости<select name="employment" multiple>
{{- range $opts.Employment }}<option{{ if selected $f.Employment . }} selected{{ end }}>{{ . }}</option>{{ end -}}
</select></label>
<label>Зарплата от <input type="number" name="salary_min" value="{{ bound $f.SalaryMin $opts.SalaryMin }}"></label>
<label>до <input type="number" name="salary_max" value="{{ bound $f.SalaryMax $opts.SalaryMax }}"></label>
<button type="submit">Применить</button>
</form>
</aside>
<main>
<h1>Арктический рынок труда</h1>
{{- if .Error }}
<div class="error">{{ .Error }}<br>Path: <code>{{ .Path }}</code></div>
{{- else if .Notice }}
<div class="notice">{{ .Notice }}</div>
{{- else if .Summary }}{{ with .Summary }}
<p><strong>Найдено вакансий:</strong> {{ .Count }}</p>
<div class="grid">
<section><h3>Топ профессий</h3><table>
{{- $mp := maxCount .TopProfessions }}{{ range .TopProfessions }}
<tr><td>{{ .Name }}</td><td>{{ .Count }}</td><td><div class="bar" style="width: {{ pct .Count $mp }}%"></div></td></tr>
{{- end }}</table></section>
<section><h3>Распределение зарплат</h3><table>
{{- $mh := maxBin .Histogram }}{{ range .Histogram }}
<tr><td>{{ .Label }}</td><td>{{ .Count }}</td><td><div class="bar" style="width: {{ pct .Count $mh }}%"></div></td></tr>
{{- end }}</table></section>
<section><h3>Средняя зарплата по регионам</h3><table>
{{- $mr := maxMean .MeanByRegion }}{{ range .MeanByRegion }}
<tr><td>{{ .Name }}</td><td>{{ rub .Mean }}</td><td><div class="bar" style="width: {{ pct .Mean $mr }}%"></div></td></tr>
{{- end }}</table></section>
<section><h3>Средняя зарплата по опыту работы</h3><table>
{{- $mx := maxMean .MeanByExperience }}{{ range .MeanByExperience }}
<tr><td>{{ .Name }}</td><td>{{ rub .Mean }}</td><td><div class="bar" style="width: {{ pct .Mean $mx }}%"></div></td></tr>
{{- end }}</table></section>
<section><h3>Тип занятости</h3><table>
{{- $me := maxCount .Employment }}{{ range .Employment }}
<tr><td>{{ .Name }}</td><td>{{ .Count }}</td><td><div class="bar" style="width: {{ pct .Count $me }}%"></div></td></tr>
{{- end }}</table></section>
<section><h3>Самая высокооплачиваемая профессия</h3>
{{- with .TopPaid }}
<p><strong>{{ .Name }}</strong>: {{ rub .Mean }} ({{ .Count }} вакансий)</p>
{{- else }}
<p>Недостаточно данных</p>
{{- end }}</section>
</div>
<h3>Данные по вакансиям</h3>
<table><tr><th>profession</th><th>region</th><th>salary_avg</th><th>experience</th><th>employment_type</th></tr>
{{- range .Preview }}
<tr><td>{{ .Profession }}</td><td>{{ .Region }}</td><td>{{ rub .SalaryAvg }}</td><td>{{ .Experience }}</td><td>{{ .EmploymentType }}</td></tr>
{{- end }}</table>
{{- end }}
{{- end }}
</main>
</body>
</html>
`
