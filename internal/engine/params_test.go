package engine

import (
	"errors"
	"testing"
)

func TestExtractParams(t *testing.T) {
	cfg := ActionConfig{ParameterPatterns: map[string]string{
		"customer": `for customer (\w+)`,
		"amount":   `amount of (\d+)`,
	}}
	params, err := ExtractParams("Create a task for customer Acme with amount of 500", cfg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if params["customer"] != "Acme" || params["amount"] != "500" {
		t.Fatalf("params: %#v", params)
	}
}

func TestExtractParamsCaseInsensitive(t *testing.T) {
	cfg := ActionConfig{ParameterPatterns: map[string]string{"customer": `FOR CUSTOMER (\w+)`}}
	params, err := ExtractParams("for customer acme", cfg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if params["customer"] != "acme" {
		t.Fatalf("params: %#v", params)
	}
}

func TestExtractParamsSilentMiss(t *testing.T) {
	cfg := ActionConfig{ParameterPatterns: map[string]string{
		"customer": `for customer (\w+)`,
		"amount":   `amount of (\d+)`,
	}}
	params, err := ExtractParams("create a task for customer Acme", cfg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(params) != 1 || params["customer"] != "Acme" {
		t.Fatalf("params: %#v", params)
	}
}

func TestExtractParamsBadPattern(t *testing.T) {
	cfg := ActionConfig{ParameterPatterns: map[string]string{"x": `(unclosed`}}
	if _, err := ExtractParams("anything", cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestExtractParamsNoCaptureGroup(t *testing.T) {
	cfg := ActionConfig{ParameterPatterns: map[string]string{"x": `no group`}}
	if _, err := ExtractParams("no group", cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestExtractParamsEmptyConfig(t *testing.T) {
	params, err := ExtractParams("anything", ActionConfig{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(params) != 0 {
		t.Fatalf("params: %#v", params)
	}
}

func TestSubstitute(t *testing.T) {
	got := substitute("Task for {customer}: {note}", map[string]string{"customer": "Acme"})
	if got != "Task for Acme: {note}" {
		t.Fatalf("got %q", got)
	}
}
