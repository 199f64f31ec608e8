package i18n

import "testing"

func TestGetFallsBackThroughChain(t *testing.T) {
	c := New("en-US")
	c.Load("en-US", map[string]string{"label.topic": "Topic"})

	v, ok := c.Get("de", "label.topic")
	if !ok || v != "Topic" {
		t.Fatalf("expected fallback hit, got %q ok=%v", v, ok)
	}
}

func TestGetMissReturnsKey(t *testing.T) {
	c := New("en-US")
	v, ok := c.Get("en-US", "label.missing")
	if ok {
		t.Fatalf("expected miss")
	}
	if v != "label.missing" {
		t.Fatalf("expected key echoed back, got %q", v)
	}
}

func TestInterpolateSubstitutesKnownVarsOnly(t *testing.T) {
	got := Interpolate("hello %{name}, unknown %{missing} stays", map[string]string{"name": "world"})
	want := "hello world, unknown %{missing} stays"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestLoadLaterOverwritesEarlier(t *testing.T) {
	c := New()
	c.Load("en-US", map[string]string{"k": "v1"})
	c.Load("en-US", map[string]string{"k": "v2"})
	v, _ := c.Get("en-US", "k")
	if v != "v2" {
		t.Fatalf("expected v2, got %q", v)
	}
}

func TestNodeLoaderGetNodeHelp(t *testing.T) {
	c := New("en-US")
	c.Load("en-US", map[string]string{"help.flowrt/core": "<p>core help</p>"})
	loader := &NodeLoader{Catalog: c}

	v, ok := loader.GetNodeHelp("flowrt/core", "fr")
	if !ok || v != "<p>core help</p>" {
		t.Fatalf("expected fallback help, got %q ok=%v", v, ok)
	}

	_, ok = loader.GetNodeHelp("unknown/set", "en-US")
	if ok {
		t.Fatalf("expected miss for unknown set")
	}
}
