package mqttconfig

import "testing"

// Attach/Detach require a live broker connection and are exercised by
// the node catalog's own integration points rather than here; this
// file covers the Registry's pure bookkeeping.

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry(nil)
	b := New(Config{ID: "broker1", Broker: "tcp://localhost:1883", ClientID: "c1"}, nil)

	r.Put("broker1", b)

	got, ok := r.Get("broker1")
	if !ok || got != b {
		t.Fatalf("expected to find broker1")
	}

	r.Remove("broker1")
	if _, ok := r.Get("broker1"); ok {
		t.Fatalf("expected broker1 removed")
	}
}

func TestRegistryGetUnknownIDMisses(t *testing.T) {
	r := NewRegistry(nil)
	if _, ok := r.Get("nope"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestNewBrokerKeepsIDAndURL(t *testing.T) {
	b := New(Config{ID: "b", Broker: "tcp://localhost:1883", ClientID: "c"}, nil)
	if b.ID != "b" || b.URL != "tcp://localhost:1883" {
		t.Fatalf("unexpected broker fields: %+v", b)
	}
}
