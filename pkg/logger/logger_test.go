package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestWithFieldsPromotesKnownKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New("fleet-dashboard", &buf, LevelDebug)

	log.WithFields(LogFields{"domain": "kpis", "event": "kpis", "attempt": 2}).Info("store_updated", "ok")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["domain"] != "kpis" || e["event"] != "kpis" {
		t.Errorf("known keys not promoted: %v", e)
	}
	fields, ok := e["fields"].(map[string]interface{})
	if !ok || fields["attempt"] != float64(2) {
		t.Errorf("fields = %v, want attempt=2", e["fields"])
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New("svc", &buf, LevelInfo)
	_ = parent.WithFields(LogFields{"k": "v"})

	parent.Info("plain", "msg")
	e := decodeLines(t, &buf)[0]
	if _, ok := e["fields"]; ok {
		t.Errorf("parent picked up child fields: %v", e)
	}
}

func TestLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New("svc", &buf, LevelError)

	log.Info("skipped", "x")
	log.Debug("skipped", "x")
	log.Error("kept", errors.New("boom"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0]["level"] != string(LevelError) {
		t.Errorf("level = %v", entries[0]["level"])
	}
	errObj, ok := entries[0]["error"].(map[string]interface{})
	if !ok || errObj["msg"] != "boom" {
		t.Errorf("error entry = %v", entries[0]["error"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":  LevelDebug,
		" ERROR": LevelError,
		"info":   LevelInfo,
		"":       LevelInfo,
		"trace":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
