package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/osmatch-cli/pkg/osmatch"
)

// fixedStart is the run start time used by driver tests.
var fixedStart = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

const fixedStamp = "20260314_092653"

type mockMatchClient struct {
	mock.Mock
}

func (m *mockMatchClient) Match(ctx context.Context, query, key string) (*osmatch.Response, error) {
	args := m.Called(ctx, query, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*osmatch.Response), args.Error(1)
}

// addressRow returns an 11-cell data row whose query cells are
// street, 6 blanks, town, postcode.
func addressRow(id, street, town, postcode string) []string {
	return []string{id, "REF" + id, street, "", "", "", "", "", "", town, postcode}
}

var addressHeader = []string{"ID", "REF", "ADDR1", "ADDR2", "ADDR3", "ADDR4", "ADDR5", "ADDR6", "ADDR7", "TOWN", "POSTCODE"}

// writeCSVFile writes records to dir/name and returns the path.
func writeCSVFile(t *testing.T, dir, name string, records [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, f.Close())
	return path
}

// readCSVFile reads every record of a results file.
func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func mustParse(t *testing.T, body string) *osmatch.Response {
	t.Helper()
	resp, err := osmatch.ParseResponse([]byte(body))
	require.NoError(t, err)
	return resp
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func containsResultsFile(names []string) bool {
	for _, n := range names {
		if strings.Contains(n, "_results_") {
			return true
		}
	}
	return false
}
