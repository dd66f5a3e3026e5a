package config

import (
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "short fully masked", input: "abc", want: maskedValue},
		{name: "eight chars fully masked", input: "12345678", want: maskedValue},
		{name: "long keeps edges", input: "my_long_secret_key_123", want: "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskSecret(tt.input)
			if got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarshalJSON_MasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "super_secret_password"}

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() unexpected error: %v", err)
	}
	if strings.Contains(string(data), "super_secret_password") {
		t.Error("marshaled config leaks the postgres password")
	}
}

func TestString_MasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "another_secret_value"}
	if strings.Contains(cfg.String(), "another_secret_value") {
		t.Error("Config.String() leaks the postgres password")
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{name: "gemini qualifies as googleai", provider: ProviderGemini, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "ollama", provider: ProviderOllama, model: "llama3.1", want: "ollama/llama3.1"},
		{name: "openai", provider: ProviderOpenAI, model: "gpt-4o", want: "openai/gpt-4o"},
		{name: "already qualified", provider: ProviderGemini, model: "ollama/llama3.1", want: "ollama/llama3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Provider: tt.provider, ModelName: tt.model}
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}
