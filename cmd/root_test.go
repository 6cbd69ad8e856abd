package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dataset"
)

func init() {
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
}

func writeConfig(t *testing.T, apiURL, datasetPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`
api:
  base_url: %s
  page_delay: 0s
ingest:
  regions: [1061, 1414]
  workers: 2
storage:
  provider: memory
dataset:
  path: %s
`, apiURL, datasetPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		area := r.URL.Query().Get("area")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":     "v-" + area,
				"name":   "Welder",
				"salary": map[string]any{"from": 90000, "currency": "RUR"},
			}},
			"pages": 1,
		})
	}))
	defer api.Close()

	datasetPath := filepath.Join(t.TempDir(), "arctic.parquet")
	out, err := execute(t, "run", "--config", writeConfig(t, api.URL, datasetPath))
	require.NoError(t, err)
	require.Contains(t, out, "stored 2 vacancies")
	require.Contains(t, out, "region 1061: 1")
	require.Contains(t, out, "region 1414: 1")
	require.Contains(t, out, "2 rows")

	rows, err := dataset.Read(datasetPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestTransformCommandOnEmptyStore(t *testing.T) {
	datasetPath := filepath.Join(t.TempDir(), "arctic.parquet")
	_, err := execute(t, "transform", "--config", writeConfig(t, "http://127.0.0.1:1", datasetPath))
	require.ErrorContains(t, err, "no raw vacancies")

	_, statErr := os.Stat(datasetPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestBadConfigFails(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "load config")
}
