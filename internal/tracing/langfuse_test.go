package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-only")

	handler, flush, ok := Setup()
	if ok || handler != nil || flush != nil {
		t.Errorf("Setup() = (%v, %v, %v), want tracing disabled", handler, flush != nil, ok)
	}
}
