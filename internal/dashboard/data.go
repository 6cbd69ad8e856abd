// Package dashboard serves filtered aggregates of the flat vacancy dataset.
package dashboard

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dataset"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// ErrDataNotFound is returned when the dataset file does not exist.
var ErrDataNotFound = errors.New("data file not found")

// Row is one dataset record with a known salary.
type Row struct {
	VacancyID      string
	Title          string
	Region         string
	Experience     string
	EmploymentType string
	Schedule       string
	Profession     string
	Salary         float64
}

// Loader reads the dataset and keeps it until the file changes on disk.
type Loader struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
	rows    []Row
	loaded  bool
}

// NewLoader creates a Loader for path.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{path: path, logger: logger}
}

// Path returns the dataset location.
func (l *Loader) Path() string {
	return l.path
}

// Rows returns the salaried rows of the dataset, rereading the file when its
// modification time or size changed since the last call.
func (l *Loader) Rows() ([]Row, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded && info.ModTime().Equal(l.modTime) && info.Size() == l.size {
		return l.rows, nil
	}

	records, err := dataset.Read(l.path)
	if err != nil {
		return nil, err
	}
	l.rows = salaried(records)
	l.modTime = info.ModTime()
	l.size = info.Size()
	l.loaded = true
	l.logger.Info("dataset loaded",
		zap.String("path", l.path),
		zap.Int("records", len(records)),
		zap.Int("salaried", len(l.rows)),
	)
	return l.rows, nil
}

func salaried(records []vacancy.FlatVacancy) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		if r.SalaryAvg == nil || math.IsNaN(*r.SalaryAvg) || math.IsInf(*r.SalaryAvg, 0) {
			continue
		}
		row := Row{
			VacancyID:      r.VacancyID,
			Title:          r.Title,
			Region:         r.Region,
			Experience:     r.Experience,
			EmploymentType: r.EmploymentType,
			Schedule:       r.Schedule,
			Salary:         *r.SalaryAvg,
		}
		if r.Profession != nil {
			row.Profession = *r.Profession
		}
		rows = append(rows, row)
	}
	return rows
}
