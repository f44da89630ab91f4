package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTrackDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       TrackDescriptor
		wantErr bool
	}{
		{"text only", TrackDescriptor{Artist: "Adele", Title: "Hello"}, false},
		{"id only", TrackDescriptor{IDs: []ExternalID{{ProviderPrimary, "12345"}}}, false},
		{"artist only", TrackDescriptor{Artist: "Adele"}, true},
		{"blank text", TrackDescriptor{Artist: "  ", Title: "Hello"}, true},
		{"empty", TrackDescriptor{}, true},
		{"unknown tag", TrackDescriptor{Artist: "A", Title: "B", IDs: []ExternalID{{"spotify", "1"}}}, true},
		{"empty id value", TrackDescriptor{IDs: []ExternalID{{ProviderSecondary, ""}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestTrackDescriptor_ID(t *testing.T) {
	d := TrackDescriptor{IDs: []ExternalID{{ProviderSecondary, "q1"}, {ProviderPrimary, "p1"}}}

	if v, ok := d.ID(ProviderPrimary); !ok || v != "p1" {
		t.Errorf("ID(primary) = %q, %v", v, ok)
	}
	if _, ok := d.ID(ProviderPeer); ok {
		t.Error("ID(peer) should be absent")
	}
}

func TestParseExternalID(t *testing.T) {
	id, err := ParseExternalID("catalog_primary:12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Provider != ProviderPrimary || id.Value != "12345" {
		t.Errorf("got %+v", id)
	}

	for _, bad := range []string{"12345", "catalog_primary:", "unknown:1"} {
		if _, err := ParseExternalID(bad); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("ParseExternalID(%q) error = %v, want invalid_request", bad, err)
		}
	}
}

func TestExternalIDs_List(t *testing.T) {
	ids := ExternalIDs{ProviderSecondary: "b", ProviderPrimary: "a"}
	list := ids.List()
	if len(list) != 2 || list[0].Provider != ProviderPrimary || list[1].Provider != ProviderSecondary {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{"", QualityHigh, false},
		{"low", QualityLow, false},
		{"MEDIUM", QualityMedium, false},
		{"lossless", QualityLossless, false},
		{"ultra", "", true},
	}
	for _, tt := range tests {
		got, err := ParseQuality(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseQuality(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestJobState_Terminal(t *testing.T) {
	for _, s := range []JobState{JobResolving, JobStreaming, JobTagging, JobPublishing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !JobDone.Terminal() || !JobFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{Wrap(ErrProviderUnavailable, cause), "provider_unavailable", true},
		{Wrap(ErrNotFound, cause), "not_found", false},
		{fmt.Errorf("acquire: %w", ErrNotAcquirable), "not_acquirable", false},
		{Wrap(ErrTransferFailed, Wrap(ErrProviderUnavailable, cause)), "transfer_failed", true},
		{Wrap(ErrNotAcquirable, ErrNotFound), "not_acquirable", false},
		{Wrap(ErrIntegrityFailed, cause), "integrity_failed", true},
		{Wrap(ErrLocalIO, cause), "local_io_failed", false},
		{ErrInvalidRequest, "invalid_request", false},
		{cause, "internal", false},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.kind)
		}
		if got := Retryable(tt.err); got != tt.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}

	wrapped := Wrap(ErrLocalIO, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("cause should remain reachable")
	}
	if Wrap(ErrLocalIO, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
