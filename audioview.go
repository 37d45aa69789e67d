package gosfzplayer

// AudioView is a lightweight, non-owning view over a fixed number of
// interleaved-by-channel float buffers. It is the unit voices render
// into and hosts mix from; slicing a view (First/Last/Subspan) never
// allocates, so it is safe to use from the audio thread. span is the
// backing array for the outer per-channel slice Subspan hands out; it
// is sized once, in NewAudioView, and every Subspan call (including
// ones on a view Subspan already returned) overwrites it in place
// rather than allocating a new one.
type AudioView[T float32 | float64] struct {
	channels [][]T
	span     [][]T
}

// NewAudioView wraps existing per-channel buffers. All channels must
// share the same length; callers (never the audio thread) are
// responsible for allocating them.
func NewAudioView[T float32 | float64](channels [][]T) AudioView[T] {
	return AudioView[T]{channels: channels, span: make([][]T, len(channels))}
}

// NumChannels returns the number of channels in the view.
func (a AudioView[T]) NumChannels() int {
	return len(a.channels)
}

// NumFrames returns the number of samples in each channel, or 0 for an
// empty view.
func (a AudioView[T]) NumFrames() int {
	if len(a.channels) == 0 {
		return 0
	}
	return len(a.channels[0])
}

// Channel returns the raw sample slice for channel i.
func (a AudioView[T]) Channel(i int) []T {
	return a.channels[i]
}

// Subspan returns a view over [offset, offset+length) of every channel.
// It writes the per-channel slices into a's own scratch backing array
// rather than allocating a new one, so it is safe to call every block
// from the audio thread, including on a view Subspan already returned.
func (a AudioView[T]) Subspan(offset, length int) AudioView[T] {
	for i, ch := range a.channels {
		a.span[i] = ch[offset : offset+length]
	}
	return AudioView[T]{channels: a.span, span: a.span}
}

// First returns a view over the first length samples of every channel.
func (a AudioView[T]) First(length int) AudioView[T] {
	return a.Subspan(0, length)
}

// Last returns a view over the last length samples of every channel.
func (a AudioView[T]) Last(length int) AudioView[T] {
	return a.Subspan(a.NumFrames()-length, length)
}

// Fill sets every sample in every channel to v.
func (a AudioView[T]) Fill(v T) {
	for _, ch := range a.channels {
		for i := range ch {
			ch[i] = v
		}
	}
}

// ApplyGain multiplies every sample in every channel by a constant gain.
func (a AudioView[T]) ApplyGain(gain T) {
	for _, ch := range a.channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
}

// ApplyGainSpan multiplies each channel, sample by sample, by a
// per-sample gain envelope. len(gain) must equal NumFrames().
func (a AudioView[T]) ApplyGainSpan(gain []T) {
	for _, ch := range a.channels {
		for i := range ch {
			ch[i] *= gain[i]
		}
	}
}

// Add accumulates other into this view, channel by channel. The two
// views must have matching NumChannels and NumFrames.
func (a AudioView[T]) Add(other AudioView[T]) {
	for c, ch := range a.channels {
		src := other.channels[c]
		for i := range ch {
			ch[i] += src[i]
		}
	}
}

// Copy overwrites this view's contents with other's.
func (a AudioView[T]) Copy(other AudioView[T]) {
	for c, ch := range a.channels {
		copy(ch, other.channels[c])
	}
}

// MeanSquared returns the average squared sample value across every
// channel and frame, the quantity RingPower accumulates for voice
// stealing.
func (a AudioView[T]) MeanSquared() T {
	var sum T
	n := 0
	for _, ch := range a.channels {
		for _, v := range ch {
			sum += v * v
		}
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return sum / T(n)
}
