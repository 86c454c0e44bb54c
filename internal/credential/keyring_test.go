package credential

import "testing"

func TestGet_PrefersEnvOverride(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	got, err := Get(KeyAnthropicAPI)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "sk-test" {
		t.Errorf("Get() = %q, want env value", got)
	}
}

func TestGet_TrimsEnvWhitespace(t *testing.T) {
	t.Setenv("MAILASSISTANT_MAIL_PASSWORD", "  hunter2\n")

	got, err := Get(KeyMailPassword)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Get() = %q, want trimmed value", got)
	}
}
