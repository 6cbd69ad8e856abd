package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := pagesFetchedTotal
	Init()

	if pagesFetchedTotal == nil || pagesFetchedTotal != first {
		t.Fatal("Init() did not initialize collectors exactly once")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	ObservePage(1061, true)
	ObservePage(1061, false)
	if val := testutil.ToFloat64(pagesFetchedTotal.WithLabelValues("1061", "error")); val < 1 {
		t.Errorf("expected error page counter >= 1, got %f", val)
	}

	before := testutil.ToFloat64(vacanciesStoredTotal.WithLabelValues("1414"))
	ObserveInsert(1414, 7, 2)
	if got := testutil.ToFloat64(vacanciesStoredTotal.WithLabelValues("1414")) - before; got != 7 {
		t.Errorf("expected 7 stored, got %f", got)
	}

	beforeFailed := testutil.ToFloat64(regionRunsTotal.WithLabelValues("failed"))
	ObserveRegion(errors.New("boom"))
	if got := testutil.ToFloat64(regionRunsTotal.WithLabelValues("failed")) - beforeFailed; got != 1 {
		t.Errorf("expected one failed region, got %f", got)
	}

	ObserveDataset(42)
	if val := testutil.ToFloat64(datasetRows); val != 42 {
		t.Errorf("expected dataset rows 42, got %f", val)
	}

	finished := time.Unix(1_700_000_000, 0)
	ObserveRun(finished, 3*time.Second)
	if val := testutil.ToFloat64(lastRunTimestampSeconds); val != 1_700_000_000 {
		t.Errorf("unexpected last run timestamp %f", val)
	}
}

func TestPushSkipsWithoutGateway(t *testing.T) {
	if err := Push(context.Background(), "", "job", "run"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestPushSendsToGateway(t *testing.T) {
	Init()
	ObserveDataset(5)

	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Push(context.Background(), srv.URL, "arctic", "run-1"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(path, "/job/arctic/run_id/run-1") {
		t.Errorf("unexpected push path %q", path)
	}
	if body == "" {
		t.Error("expected a non-empty push body")
	}
}
