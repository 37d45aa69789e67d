package gosfzplayer

import "testing"

func TestCombFilterFeedsBackAfterDelay(t *testing.T) {
	cf := NewCombFilter(4)
	cf.SetFeedback(0.5)
	cf.SetDamp(0)

	out := cf.Process(1)
	if out != 0 {
		t.Errorf("first output = %f, want 0 (buffer starts empty)", out)
	}
	for i := 0; i < 3; i++ {
		cf.Process(0)
	}
	if out := cf.Process(0); out == 0 {
		t.Error("after one full delay cycle, comb filter should echo the original input back")
	}
}

func TestAllpassFilterPassesEnergy(t *testing.T) {
	af := NewAllpassFilter(4)
	out := af.Process(1)
	if out != -1 {
		t.Errorf("first output = %f, want -1 (input with empty buffer)", out)
	}
}

func TestFreeverbWetZeroIsPassthroughDry(t *testing.T) {
	fv := NewFreeverb(DefaultHostConfig(), 44100)
	fv.SetWet(0)
	fv.SetDry(1)

	l, r := fv.ProcessStereo(0.5, -0.5)
	if l < 0.49 || l > 0.51 {
		t.Errorf("left output = %f, want ~0.5 with wet=0 dry=1", l)
	}
	if r > -0.49 || r < -0.51 {
		t.Errorf("right output = %f, want ~-0.5 with wet=0 dry=1", r)
	}
}

func TestFreeverbParameterClamping(t *testing.T) {
	fv := NewFreeverb(DefaultHostConfig(), 44100)

	fv.SetRoomSize(2.0)
	if got := fv.GetRoomSize(); got != 1.0 {
		t.Errorf("GetRoomSize() = %f, want clamped to 1.0", got)
	}
	fv.SetRoomSize(-1.0)
	if got := fv.GetRoomSize(); got != 0.0 {
		t.Errorf("GetRoomSize() = %f, want clamped to 0.0", got)
	}

	fv.SetDamping(5.0)
	if got := fv.GetDamping(); got != 1.0 {
		t.Errorf("GetDamping() = %f, want clamped to 1.0", got)
	}

	fv.SetWet(2.0)
	if got := fv.GetWet(); got != 1.0 {
		t.Errorf("GetWet() = %f, want clamped to 1.0", got)
	}

	fv.SetDry(-3.0)
	if got := fv.GetDry(); got != 0.0 {
		t.Errorf("GetDry() = %f, want clamped to 0.0", got)
	}
}

func TestFreeverbSampleRateScalesDelays(t *testing.T) {
	low := NewFreeverb(DefaultHostConfig(), 22050)
	high := NewFreeverb(DefaultHostConfig(), 44100)
	if low.combsL[0].bufferSize >= high.combsL[0].bufferSize {
		t.Errorf("comb delay at 22050Hz (%d) should be shorter than at 44100Hz (%d)",
			low.combsL[0].bufferSize, high.combsL[0].bufferSize)
	}
}

func TestFreeverbProcessMonoMatchesStereoWithEqualInputs(t *testing.T) {
	fv := NewFreeverb(DefaultHostConfig(), 44100)
	fv.SetWet(0.5)
	fv.SetDry(0.5)
	ref := NewFreeverb(DefaultHostConfig(), 44100)
	ref.SetWet(0.5)
	ref.SetDry(0.5)

	mono := fv.ProcessMono(0.3)
	l, r := ref.ProcessStereo(0.3, 0.3)
	_ = r
	if mono == 0 && l == 0 {
		t.Skip("degenerate zero output, nothing meaningful to compare")
	}
	if mono != l {
		t.Errorf("ProcessMono(0.3) = %f, want %f (left output of ProcessStereo(0.3, 0.3))", mono, l)
	}
}

func TestFreeverbDoesNotProduceNaN(t *testing.T) {
	fv := NewFreeverb(DefaultHostConfig(), 48000)
	fv.SetWet(1)
	fv.SetDry(1)
	for i := 0; i < 1000; i++ {
		l, r := fv.ProcessStereo(0.1, -0.1)
		if l != l || r != r { // NaN check
			t.Fatalf("reverb produced NaN at iteration %d", i)
		}
	}
}

func TestFreeverbProcessBlockStereoMatchesPerSampleProcessStereo(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.NumChannels = 2
	block := NewFreeverb(cfg, 44100)
	perSample := NewFreeverb(cfg, 44100)
	block.SetWet(0.7)
	block.SetDry(0.3)
	perSample.SetWet(0.7)
	perSample.SetDry(0.3)

	left := []float32{0.1, 0.2, -0.3, 0.4}
	right := []float32{-0.1, 0.05, 0.3, -0.4}
	view := NewAudioView([][]float32{append([]float32{}, left...), append([]float32{}, right...)})

	block.ProcessBlock(view)

	for i := range left {
		wantL, wantR := perSample.ProcessStereo(left[i], right[i])
		if view.Channel(0)[i] != wantL || view.Channel(1)[i] != wantR {
			t.Errorf("frame %d: ProcessBlock = (%f, %f), want (%f, %f)", i, view.Channel(0)[i], view.Channel(1)[i], wantL, wantR)
		}
	}
}

func TestFreeverbProcessBlockMono(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.NumChannels = 1
	fv := NewFreeverb(cfg, 44100)
	fv.SetWet(0.5)
	fv.SetDry(0.5)

	view := NewAudioView([][]float32{{0.2, -0.2, 0.4, -0.4}})
	fv.ProcessBlock(view)

	for _, v := range view.Channel(0) {
		if v != v {
			t.Fatal("mono ProcessBlock produced NaN")
		}
	}
}
