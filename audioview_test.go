package gosfzplayer

import "testing"

func TestAudioViewFillAndChannels(t *testing.T) {
	view := NewAudioView([][]float32{make([]float32, 4), make([]float32, 4)})
	view.Fill(1.5)
	for c := 0; c < view.NumChannels(); c++ {
		for _, v := range view.Channel(c) {
			if v != 1.5 {
				t.Errorf("channel %d not filled correctly, got %f", c, v)
			}
		}
	}
	if view.NumFrames() != 4 {
		t.Errorf("NumFrames() = %d, want 4", view.NumFrames())
	}
}

func TestAudioViewSubspanSharesBackingArray(t *testing.T) {
	backing := []float32{0, 1, 2, 3, 4, 5}
	view := NewAudioView([][]float32{backing})
	sub := view.Subspan(2, 3)
	sub.Channel(0)[0] = 99
	if backing[2] != 99 {
		t.Error("Subspan should alias the original backing array, not copy")
	}
}

func TestAudioViewSubspanCorrectAcrossRepeatedCalls(t *testing.T) {
	view := NewAudioView([][]float32{{0, 1, 2, 3, 4, 5}, {10, 11, 12, 13, 14, 15}})

	a := view.Subspan(0, 4)
	if a.Channel(0)[0] != 0 || a.Channel(1)[0] != 10 {
		t.Fatalf("first Subspan wrong: %v / %v", a.Channel(0), a.Channel(1))
	}

	b := view.Subspan(2, 3)
	if b.Channel(0)[0] != 2 || b.Channel(1)[0] != 12 {
		t.Fatalf("second Subspan wrong: %v / %v", b.Channel(0), b.Channel(1))
	}

	// b was built after a, reusing view's scratch outer slice; a's own
	// channel slices must still be untouched since Subspan only
	// rewrites slice headers, never their contents.
	if a.Channel(0)[0] != 0 || a.Channel(1)[0] != 10 {
		t.Fatalf("first Subspan result was corrupted by the second call: %v / %v", a.Channel(0), a.Channel(1))
	}

	// Subspan on a view Subspan already returned must also avoid
	// allocating and must still produce correct aliasing slices.
	c := a.Subspan(1, 2)
	if c.Channel(0)[0] != 1 || c.Channel(1)[0] != 11 {
		t.Fatalf("Subspan on a derived view wrong: %v / %v", c.Channel(0), c.Channel(1))
	}
}

func TestAudioViewSubspanAllocatesNothing(t *testing.T) {
	backing := make([][]float32, 2)
	backing[0] = make([]float32, 256)
	backing[1] = make([]float32, 256)
	view := NewAudioView(backing)

	allocs := testing.AllocsPerRun(100, func() {
		sub := view.Subspan(10, 32)
		_ = sub.Channel(0)
	})
	if allocs != 0 {
		t.Errorf("Subspan allocated %v times per call, want 0", allocs)
	}
}

func TestAudioViewApplyGain(t *testing.T) {
	view := NewAudioView([][]float32{{1, 2, 3}})
	view.ApplyGain(2)
	want := []float32{2, 4, 6}
	for i, v := range view.Channel(0) {
		if v != want[i] {
			t.Errorf("Channel(0)[%d] = %f, want %f", i, v, want[i])
		}
	}
}

func TestAudioViewAdd(t *testing.T) {
	a := NewAudioView([][]float32{{1, 2, 3}})
	b := NewAudioView([][]float32{{10, 20, 30}})
	a.Add(b)
	want := []float32{11, 22, 33}
	for i, v := range a.Channel(0) {
		if v != want[i] {
			t.Errorf("Channel(0)[%d] = %f, want %f", i, v, want[i])
		}
	}
}

func TestAudioViewMeanSquared(t *testing.T) {
	view := NewAudioView([][]float32{{1, -1, 1, -1}})
	if got := view.MeanSquared(); got != 1 {
		t.Errorf("MeanSquared() = %f, want 1", got)
	}
}

func TestAudioViewMeanSquaredEmpty(t *testing.T) {
	view := NewAudioView[float32](nil)
	if got := view.MeanSquared(); got != 0 {
		t.Errorf("MeanSquared() of empty view = %f, want 0", got)
	}
}

func TestAudioViewFirstAndLast(t *testing.T) {
	view := NewAudioView([][]float32{{0, 1, 2, 3, 4}})
	if got := view.First(2).Channel(0); got[0] != 0 || got[1] != 1 {
		t.Errorf("First(2) = %v, want [0 1]", got)
	}
	if got := view.Last(2).Channel(0); got[0] != 3 || got[1] != 4 {
		t.Errorf("Last(2) = %v, want [3 4]", got)
	}
}
