package filler

import (
	"strings"
	"testing"
)

// The injected scripts cannot run under go test, but their contracts can
// drift silently, so the load-bearing fragments are pinned here.

func TestObserveScriptContract(t *testing.T) {
	// Only child-list growth may reach the binding. Observing attributes
	// or character data would make the filler's own writes retrigger it.
	if !strings.Contains(observeJS, "childList: true") {
		t.Error("observer must watch childList mutations")
	}
	if strings.Contains(observeJS, "attributes") || strings.Contains(observeJS, "characterData") {
		t.Error("observer must not watch attribute or text mutations")
	}

	// Additions only count when they are or contain a form control, so
	// unrelated DOM churn does not schedule rescans.
	if !strings.Contains(observeJS, "input, select, textarea") {
		t.Error("observer must filter added nodes to form controls")
	}
	if !strings.Contains(observeJS, mutationBinding) {
		t.Errorf("observer must report through the %s binding", mutationBinding)
	}
}

func TestFillScriptContract(t *testing.T) {
	// The page-side writer re-checks state before each write and raises
	// the events frameworks listen for.
	for _, want := range []string{"input", "change", "bubbles"} {
		if !strings.Contains(fillJS, want) {
			t.Errorf("fill script missing %q", want)
		}
	}
}
