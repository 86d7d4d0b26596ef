package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsPlayable(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		want bool
	}{
		{name: "combined", f: Format{URL: "https://a/v.mp4", VideoCodec: "avc1", AudioCodec: "mp4a"}, want: true},
		{name: "unknown codecs", f: Format{URL: "https://a/v.mp4"}, want: true},
		{name: "audio only", f: Format{URL: "https://a/a.m4a", VideoCodec: CodecNone, AudioCodec: "mp4a"}, want: true},
		{name: "no tracks", f: Format{URL: "https://a/x", VideoCodec: CodecNone, AudioCodec: CodecNone}, want: false},
		{name: "no url", f: Format{VideoCodec: "avc1"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlayable(tt.f); got != tt.want {
				t.Fatalf("IsPlayable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Format{FormatID: "ok", Width: 1280, Height: 720}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := Validate(Format{FormatID: "neg", Width: -1, Height: 720}); err == nil {
		t.Fatalf("Validate() expected error for negative width")
	}
	if err := Validate(Format{FormatID: "none", VideoCodec: CodecNone, AudioCodec: CodecNone}); err == nil {
		t.Fatalf("Validate() expected error for trackless format")
	}
}

func TestMetadataOverlay_ChildWins(t *testing.T) {
	parent := Metadata{ID: "p", Title: "Parent", Uploader: "chan", Extra: map[string]string{"a": "1", "b": "1"}}
	child := Metadata{ID: "c", Duration: 12, Extra: map[string]string{"b": "2"}}

	got := parent.Overlay(child)
	if got.ID != "c" || got.Title != "Parent" || got.Uploader != "chan" || got.Duration != 12 {
		t.Fatalf("Overlay() = %+v", got)
	}
	if got.Extra["a"] != "1" || got.Extra["b"] != "2" {
		t.Fatalf("Overlay().Extra = %v", got.Extra)
	}
	if parent.Extra["b"] != "1" {
		t.Fatalf("Overlay() mutated parent extra")
	}
}

func TestFormatClone_Independent(t *testing.T) {
	f := Format{Fragments: []Fragment{{URL: "a"}}, Challenge: &Challenge{Token: "x"}}
	c := f.Clone()
	c.Fragments[0].URL = "b"
	c.Challenge.Token = "y"
	if f.Fragments[0].URL != "a" || f.Challenge.Token != "x" {
		t.Fatalf("Clone() shares state with original")
	}
}

func TestIsExpected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "geo", err: fmt.Errorf("wrap: %w", ErrGeoRestricted), want: true},
		{name: "pattern", err: &ExtractionError{Expected: true, Err: ErrPatternNotFound}, want: false},
		{name: "expected extraction", err: &ExtractionError{Msg: "removed", Expected: true}, want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpected(tt.err); got != tt.want {
				t.Fatalf("IsExpected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractionError_Message(t *testing.T) {
	err := &ExtractionError{Reference: "https://e/1", Extractor: "generic", Msg: "no video", Err: ErrNoFormats}
	want := "[generic] https://e/1: no video: no playable formats"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrNoFormats) {
		t.Fatalf("errors.Is(ErrNoFormats) = false")
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	id, ok := RequestIDFromContext(ctx)
	if !ok || id == "" {
		t.Fatalf("RequestIDFromContext() = %q, %v", id, ok)
	}
	ctx = WithRequestID(context.Background(), "fixed")
	if id, _ := RequestIDFromContext(ctx); id != "fixed" {
		t.Fatalf("RequestIDFromContext() = %q, want fixed", id)
	}
}
