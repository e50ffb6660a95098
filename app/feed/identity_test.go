package feed

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
)

func TestNewIdentity(t *testing.T) {
	a := NewIdentity("A", "2024-01-01T00:00:00Z")

	if a != NewIdentity("A", "2024-01-01T00:00:00Z") {
		t.Error("Expected identical inputs to produce identical identities")
	}
	if a == NewIdentity("B", "2024-01-01T00:00:00Z") {
		t.Error("Expected different names to produce different identities")
	}
	if a == NewIdentity("A", "2024-01-01 00:00:00") {
		t.Error("Expected raw timestamp formatting to matter")
	}
	// Name and timestamp are separated, so shifting characters between them changes the key
	if NewIdentity("ab", "c") == NewIdentity("a", "bc") {
		t.Error("Expected field boundary to be part of the identity")
	}
}

func TestNewIdentityNormalizesName(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	if NewIdentity(composed, "t") != NewIdentity(decomposed, "t") {
		t.Error("Expected NFC-equivalent names to share an identity")
	}
}

func TestIdentityText(t *testing.T) {
	id := NewIdentity("A", "2024-01-01T00:00:00Z")

	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if len(text) != 16 {
		t.Errorf("Expected 16 hex characters, got %q", text)
	}

	var decoded Identity
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if decoded != id {
		t.Errorf("Expected %s, got %s", id, decoded)
	}

	if err := decoded.UnmarshalText([]byte("zz")); err == nil {
		t.Error("Expected error for non-hex identity")
	}
}

func TestRecordJSON(t *testing.T) {
	record := Record{
		Text:      "hi",
		Name:      "A",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Identity:  Identity(0xff),
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(record)
	if err != nil {
		t.Fatal(err)
	}

	expected := `{"text":"hi","name":"A","timestamp":"2024-01-01T00:00:00Z","identity":"00000000000000ff"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2024-01-01T00:00:00Z", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "Mon, 03 Jul 2023 10:00:00 GMT", want: time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)},
		{raw: "2024-01-01 08:30:00", want: time.Date(2024, 1, 1, 8, 30, 0, 0, time.Local)},
		{raw: "not-a-date", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
