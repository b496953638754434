package tui

import "testing"

func TestRenderKeyValue(t *testing.T) {
	got := RenderKeyValue("Bytes received", "1.0KiB")
	if got == "" {
		t.Error("RenderKeyValue should not return an empty string")
	}
}

func TestRenderProgressBar(t *testing.T) {
	cases := []float64{0, 0.25, 0.5, 1.0}
	for _, p := range cases {
		got := RenderProgressBar(p, 40)
		if got == "" {
			t.Errorf("RenderProgressBar(%v, 40) returned empty string", p)
		}
	}
}

func TestRenderProgressBar_ClampsWidth(t *testing.T) {
	// widths below the floor should not panic and should still render.
	if got := RenderProgressBar(0.5, 0); got == "" {
		t.Error("RenderProgressBar with width 0 should still render using the minimum width")
	}
}

func TestRenderProgressBar_ClampsProgress(t *testing.T) {
	if got := RenderProgressBar(-1, 20); got == "" {
		t.Error("RenderProgressBar with negative progress should clamp to empty bar, not panic")
	}
	if got := RenderProgressBar(2, 20); got == "" {
		t.Error("RenderProgressBar with progress > 1 should clamp to full bar, not panic")
	}
}

func TestRepeatChar(t *testing.T) {
	if got := repeatChar('x', 3); got != "xxx" {
		t.Errorf("repeatChar('x', 3) = %q, want xxx", got)
	}
	if got := repeatChar('x', 0); got != "" {
		t.Errorf("repeatChar('x', 0) = %q, want empty string", got)
	}
	if got := repeatChar('x', -1); got != "" {
		t.Errorf("repeatChar('x', -1) = %q, want empty string", got)
	}
}
