package logging

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetProvider(ctx) != "" {
		t.Fatal("empty context should return empty values")
	}

	ctx = WithRequestID(ctx, "abc")
	ctx = WithProvider(ctx, "gpt")

	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q, want abc", got)
	}
	if got := GetProvider(ctx); got != "gpt" {
		t.Errorf("GetProvider() = %q, want gpt", got)
	}
}
