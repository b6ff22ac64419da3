package services_test

import (
	"errors"
	"strings"
	"testing"

	"nemoship/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCloud, "deploy", "create_model", "rejected", base)
	if !errors.Is(err, services.ErrCloud) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected base error, got %v", err)
	}
	for _, fragment := range []string{"deploy", "create_model", "rejected", "boom"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", " ", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestExitCodeAndHint(t *testing.T) {
	cfgErr := services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil)
	if code := services.ExitCode(cfgErr); code != 2 {
		t.Fatalf("expected exit 2 for configuration error, got %d", code)
	}
	if code := services.ExitCode(errors.New("x")); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if code := services.ExitCode(nil); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if hint := services.Hint(services.Wrap(services.ErrCloud, "", "", "", nil)); !strings.Contains(hint, "AWS") {
		t.Fatalf("unexpected hint %q", hint)
	}
	if services.Hint(nil) != "" {
		t.Fatal("expected empty hint for nil")
	}
}
