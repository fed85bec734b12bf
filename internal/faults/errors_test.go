package faults

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	base := errors.New("disk unplugged")
	err := Wrap(ErrTransient, "hashing", "read chunk", "I/O interrupted", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatal("expected transient marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause")
	}
	if !strings.Contains(err.Error(), "hashing: read chunk: I/O interrupted") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "scan", "", "", nil)
	if Classify(err) != KindTransient {
		t.Fatalf("expected transient, got %s", Classify(err))
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Wrap(ErrContent, "archive", "open", "corrupt header", nil), KindContent},
		{Wrap(ErrConfiguration, "preflight", "", "missing root", nil), KindConfiguration},
		{Wrap(ErrIntegrity, "catalog", "", "constraint violated", nil), KindIntegrity},
		{Wrap(ErrTimeout, "archive", "", "extraction ceiling", nil), KindTimeout},
		{errors.New("plain"), KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRetryableAndFatal(t *testing.T) {
	if !Retryable(Wrap(ErrTransient, "", "", "lock", nil)) {
		t.Fatal("transient should retry")
	}
	if Retryable(Wrap(ErrContent, "", "", "corrupt", nil)) {
		t.Fatal("content errors never retry")
	}
	if !Fatal(Wrap(ErrConfiguration, "", "", "bad policy", nil)) {
		t.Fatal("configuration errors are fatal")
	}
	if Fatal(Wrap(ErrContent, "", "", "corrupt", nil)) {
		t.Fatal("content errors are not fatal")
	}
}

func TestRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond}, "unit", func() error {
		calls++
		return Wrap(ErrContent, "archive", "open", "corrupt", nil)
	})
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
	if Classify(err) != KindContent {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}, "unit", func() error {
		calls++
		if calls < 3 {
			return Wrap(ErrTransient, "catalog", "commit", "database locked", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond}, "unit", func() error {
		calls++
		return Wrap(ErrTransient, "catalog", "commit", "database locked", nil)
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
