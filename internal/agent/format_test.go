package agent

import (
	"reflect"
	"testing"
)

func TestFormatResults(t *testing.T) {
	rows := [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}
	got := FormatResults(rows, []string{"id", "name"})
	want := []Record{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2), "name": "bob"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FormatResults() = %#v, want %#v", got, want)
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	if got := FormatResults(nil, []string{"id"}); got != NoResultsSentinel {
		t.Fatalf("FormatResults(nil rows) = %v", got)
	}
	if got := FormatResults([][]any{{1}}, nil); got != NoResultsSentinel {
		t.Fatalf("FormatResults(nil columns) = %v", got)
	}
}

func TestFormatResultsShortRow(t *testing.T) {
	got := FormatResults([][]any{{int64(7)}}, []string{"id", "name"})
	records, ok := got.([]Record)
	if !ok || len(records) != 1 {
		t.Fatalf("FormatResults() = %#v", got)
	}
	if records[0]["id"] != int64(7) {
		t.Fatalf("id = %v", records[0]["id"])
	}
	if _, present := records[0]["name"]; present {
		t.Fatalf("missing cell should not produce a key, got %#v", records[0])
	}
}
