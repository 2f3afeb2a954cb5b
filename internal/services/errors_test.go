package services_test

import (
	"errors"
	"strings"
	"testing"

	"songlens/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDecode, "decoder", "ffmpeg", "could not decode audio", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"decoder", "ffmpeg", "could not decode audio", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetails(t *testing.T) {
	cause := errors.New("load failed")
	err := services.Wrap(services.ErrModelInit, "inference", "load", "model could not be loaded", cause)
	details := services.Details(err)
	if details.Kind != "model_init" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Operation != "load" || details.Stage != "inference" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Cause != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.ErrTimeout, "timeout"},
		{services.ErrFeatureExtraction, "feature_extraction"},
		{services.ErrModelPrediction, "model_prediction"},
		{errors.New("plain"), "unknown"},
		{services.Wrap(services.ErrNoAudio, "", "", "", nil), "no_audio"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil")
	}
}

func TestUserMessagePrefersWrappedMessage(t *testing.T) {
	err := services.Wrap(services.ErrDecode, "decoder", "decode", "Could not decode audio file", errors.New("exit 1"))
	if got := services.UserMessage(err); got != "Could not decode audio file" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := services.UserMessage(errors.New("raw")); got != "raw" {
		t.Fatalf("unexpected message %q", got)
	}
}
