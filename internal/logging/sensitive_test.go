package logging

import (
	"reflect"
	"testing"
)

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"pihole_api_key", true},
		{"TelegramBotToken", true},
		{"webhook_url", true},
		{"password", true},
		{"domain", false},
		{"device_id", false},
		{"comment", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitiveKey(tt.key); got != tt.want {
				t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestMaskValue(t *testing.T) {
	if got := MaskValue("api_key", "abcd1234"); got != MaskedValue {
		t.Errorf("MaskValue(api_key) = %v", got)
	}
	if got := MaskValue("domain", "evil.example.com"); got != "evil.example.com" {
		t.Errorf("MaskValue(domain) = %v", got)
	}
	if got := MaskValue("token", nil); got != nil {
		t.Errorf("MaskValue(nil) = %v", got)
	}

	list := MaskValue("credentials", []string{"a", "b"})
	if !reflect.DeepEqual(list, []string{MaskedValue, MaskedValue}) {
		t.Errorf("MaskValue(list) = %v", list)
	}
}

func TestMaskParameters(t *testing.T) {
	params := map[string]any{
		"domain":  "evil.example.com",
		"api_key": "supersecret",
		"headers": map[string]any{
			"Authorization": "Bearer abc",
			"Content-Type":  "application/json",
		},
	}

	masked := MaskParameters(params)

	if masked["domain"] != "evil.example.com" {
		t.Errorf("domain masked: %v", masked["domain"])
	}
	if masked["api_key"] != MaskedValue {
		t.Errorf("api_key not masked: %v", masked["api_key"])
	}

	headers := masked["headers"].(map[string]any)
	if headers["Authorization"] != MaskedValue {
		t.Errorf("nested authorization not masked: %v", headers["Authorization"])
	}
	if headers["Content-Type"] != "application/json" {
		t.Errorf("nested plain value masked: %v", headers["Content-Type"])
	}

	// Input stays untouched.
	if params["api_key"] != "supersecret" {
		t.Error("MaskParameters modified its input")
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", MaskedValue},
		{"abcd1234efgh5678", "abcd****5678"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.in); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
