package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// Nil installs a no-op logger.
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestSetDebug(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})

	// Disabled by default: no routing.
	Debugf("frame %d", 1)
	if got != "" {
		t.Fatalf("Debugf routed while disabled: %q", got)
	}

	SetDebug(true)
	Debugf("frame %d", 2)
	if got != "frame %d" {
		t.Fatalf("Debugf not routed while enabled, got %q", got)
	}

	SetDebug(false)
	got = ""
	Debugf("frame %d", 3)
	if got != "" {
		t.Fatalf("Debugf routed after disable: %q", got)
	}
}
