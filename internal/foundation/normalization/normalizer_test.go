package normalization

import (
	"strings"
	"testing"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

type transport string

const (
	transportLocal transport = "local"
	transportNATS  transport = "nats"
	transportMQTT  transport = "mqtt"
)

func transports() map[string]transport {
	return map[string]transport{
		"local": transportLocal,
		"nats":  transportNATS,
		"mqtt":  transportMQTT,
	}
}

func TestNormalizer_Basic(t *testing.T) {
	n := NewNormalizer(transports(), transportLocal)

	tests := []struct {
		name     string
		input    string
		expected transport
	}{
		{"exact match", "nats", transportNATS},
		{"case insensitive", "MQTT", transportMQTT},
		{"with spaces", "  nats  ", transportNATS},
		{"invalid input", "bluetooth", transportLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_WithError(t *testing.T) {
	n := NewNormalizer(transports(), transportLocal)

	got, err := n.NormalizeWithError("NATS")
	if err != nil || got != transportNATS {
		t.Fatalf("NormalizeWithError(NATS) = %v, %v", got, err)
	}

	_, err = n.NormalizeWithError("bluetooth")
	if err == nil {
		t.Fatal("expected error for unknown value")
	}
	if !ferrors.HasCategory(err, ferrors.CategoryValidation) {
		t.Errorf("expected validation category, got %v", err)
	}
}

func TestEnumNormalizer_Validation(t *testing.T) {
	e := NewEnumNormalizer("monitor type", transports(), transportLocal)

	if !e.IsValid(" Local ") {
		t.Error("expected padded value to be valid")
	}
	if e.IsValid("carrier pigeon") {
		t.Error("expected unknown value to be invalid")
	}

	_, err := e.NormalizeWithValidation("carrier pigeon")
	if err == nil || !strings.Contains(err.Error(), "invalid monitor type") {
		t.Fatalf("expected enum name in error, got %v", err)
	}
	if !ferrors.HasCategory(err, ferrors.CategoryValidation) {
		t.Error("expected wrapped classified error")
	}
}

func TestValidKeys(t *testing.T) {
	keys := NewNormalizer(transports(), transportLocal).ValidKeys()
	expected := []string{"local", "mqtt", "nats"}
	if strings.Join(keys, ",") != strings.Join(expected, ",") {
		t.Errorf("ValidKeys() = %v, want %v", keys, expected)
	}
}
