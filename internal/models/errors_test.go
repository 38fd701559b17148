package models

import (
	"errors"
	"testing"
)

func TestCheckErrorKindString(t *testing.T) {
	cases := map[CheckErrorKind]string{
		CheckErrorEmptyReply:            "empty_reply",
		CheckErrorScreenshotUnavailable: "screenshot_unavailable",
		CheckErrorPageUnloadable:        "page_unloadable",
		CheckErrorContentButNoText:      "content_but_no_text",
		CheckErrorPermission:            "permission",
		CheckErrorUnknown:               "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("kind %d: expected %q, got %q", kind, want, got)
		}
	}
}

func TestAsCheckError(t *testing.T) {
	if AsCheckError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	typed := NewEmptyReplyError(503)
	got := AsCheckError(WrapError(typed, "fetch step"))
	if got.Kind != CheckErrorEmptyReply {
		t.Errorf("expected wrapped CheckError to survive unwrapping, got kind %s", got.Kind)
	}
	if got.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", got.StatusCode)
	}

	plain := AsCheckError(errors.New("boom"))
	if plain.Kind != CheckErrorUnknown {
		t.Errorf("expected foreign error to map to unknown, got %s", plain.Kind)
	}
	if plain.Message != "boom" {
		t.Errorf("expected stringified cause, got %q", plain.Message)
	}
}

func TestContentButNoTextVariants(t *testing.T) {
	missing := NewContentButNoTextError(true)
	empty := NewContentButNoTextError(false)
	if missing.Message == empty.Message {
		t.Error("filter-missing and no-text variants must differ in message")
	}
	if !missing.FilterMissing || empty.FilterMissing {
		t.Error("FilterMissing flag not set correctly")
	}
}
