package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDBConfigFloatAcceptsNumbersAndNumericStrings(t *testing.T) {
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		"as_number":  json.RawMessage(`12.5`),
		"as_string":  json.RawMessage(`"7.25"`),
		"bad_value":  json.RawMessage(`"not-a-number"`),
		"bad_object": json.RawMessage(`{"nested":1}`),
	})

	if got, ok := DBConfigFloat("as_number"); !ok || got != 12.5 {
		t.Fatalf("as_number = %v, %v; want 12.5, true", got, ok)
	}
	if got, ok := DBConfigFloat("as_string"); !ok || got != 7.25 {
		t.Fatalf("as_string = %v, %v; want 7.25, true", got, ok)
	}
	if _, ok := DBConfigFloat("bad_value"); ok {
		t.Fatalf("bad_value should not parse")
	}
	if _, ok := DBConfigFloat("bad_object"); ok {
		t.Fatalf("bad_object should not parse")
	}
	if _, ok := DBConfigFloat("missing"); ok {
		t.Fatalf("missing key should not parse")
	}
}

func TestStoreDBConfigCopiesValues(t *testing.T) {
	original := json.RawMessage(`"hello"`)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{"greeting": original})
	original[1] = 'X'

	got, ok := DBConfigString("greeting")
	if !ok || got != "hello" {
		t.Fatalf("greeting = %q, %v; want %q, true", got, ok, "hello")
	}
}
