package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, connectSession(testSession, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	output := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", output); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(lines))
	}
	if lines[0]["SessionID"] != testSession {
		t.Errorf("SessionID = %v, want %s", lines[0]["SessionID"], testSession)
	}
	if _, ok := lines[0]["Primitive"].(map[string]any); !ok {
		t.Errorf("first event should carry a primitive: %v", lines[0])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, connectSession(testSession, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	output := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", output); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 11 {
		t.Fatalf("expected header + 10 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", records[0])
	}

	scan := records[1]
	if scan[6] != "SCAN_REQUEST" || scan[7] != "1" {
		t.Errorf("scan row = %v", scan)
	}
	auth := records[6]
	if auth[6] != "AUTHENTICATE_CONFIRM" || auth[8] != testBSSID+" SUCCESS" {
		t.Errorf("auth confirm row = %v", auth)
	}
	last := records[10]
	if last[6] != "LINK_LOST" || last[8] != testBSSID {
		t.Errorf("link lost row = %v", last)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
