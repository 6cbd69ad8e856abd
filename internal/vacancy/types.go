// Package vacancy defines the core types shared across the ingestion and
// transformation subsystems.
package vacancy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CurrencyRUB is the hh.ru currency code for roubles. Only salaries quoted in
// this currency contribute to the analytic dataset.
const CurrencyRUB = "RUR"

// Stamp keys appended to every raw document at ingestion time.
const (
	FieldFetchedAt      = "_fetched_at"
	FieldSourceRegionID = "_source_region_id"
	FieldRunID          = "_run_id"
)

// RawDocument is one vacancy item as returned by the API, plus the stamps
// added by the region fetcher before it reaches the raw store.
type RawDocument struct {
	// ID is the external hh.ru identifier; it is the uniqueness key in the store.
	ID string
	// Archived mirrors the item's "archived" flag.
	Archived bool
	// Body is the untouched item JSON.
	Body json.RawMessage

	FetchedAt      time.Time
	SourceRegionID int
	RunID          string
}

// Page is one parsed page of the vacancy search endpoint.
type Page struct {
	Items []RawDocument
	// Pages is the total page count reported by the API.
	Pages int
	// Dropped counts items that were not JSON objects or carried no id.
	Dropped int
}

// InsertResult reports the outcome of one unordered bulk insert.
type InsertResult struct {
	Inserted   int
	Duplicates int
}

// RegionTask is the unit of work handed to the ingestion worker pool.
type RegionTask struct {
	RegionID  int
	RunID     string
	Submitted time.Time
}

// RegionResult is produced by a worker once a region task completes.
type RegionResult struct {
	RegionID int
	Count    int
	Err      error
	Duration time.Duration
}

// FlatVacancy is the normalized analytic record written to the dataset.
type FlatVacancy struct {
	VacancyID      string   `parquet:"vacancy_id" json:"vacancy_id"`
	Title          string   `parquet:"title" json:"title"`
	Region         string   `parquet:"region" json:"region"`
	PublishedAt    string   `parquet:"published_at" json:"published_at"`
	SalaryAvg      *float64 `parquet:"salary_avg,optional" json:"salary_avg"`
	Experience     string   `parquet:"experience" json:"experience"`
	EmploymentType string   `parquet:"employment_type" json:"employment_type"`
	Schedule       string   `parquet:"schedule" json:"schedule"`
	Profession     *string  `parquet:"profession,optional" json:"profession"`
}

// Stamped returns the item JSON with the ingestion stamps merged in as
// top-level keys. Stamps overwrite same-named keys from the API.
func (d RawDocument) Stamped() (json.RawMessage, error) {
	fields, err := objectFields(d.Body)
	if err != nil {
		return nil, fmt.Errorf("stamp vacancy %s: %w", d.ID, err)
	}
	fetchedAt, err := json.Marshal(d.FetchedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("stamp vacancy %s: %w", d.ID, err)
	}
	fields[FieldFetchedAt] = fetchedAt
	fields[FieldSourceRegionID] = json.RawMessage(strconv.Itoa(d.SourceRegionID))
	if d.RunID != "" {
		runID, err := json.Marshal(d.RunID)
		if err != nil {
			return nil, fmt.Errorf("stamp vacancy %s: %w", d.ID, err)
		}
		fields[FieldRunID] = runID
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("stamp vacancy %s: %w", d.ID, err)
	}
	return out, nil
}
