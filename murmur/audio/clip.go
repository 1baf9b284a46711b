// Package audio provides the PCM clip model and the WAV codec used at the
// boundary between capture, transcription, and tests.
package audio

import "time"

// Clip is a block of mono PCM-16 samples at a known sample rate.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip carries no samples.
func (c Clip) Empty() bool { return len(c.Samples) == 0 }

// Resample converts the clip to the target sample rate using linear
// interpolation. Clips already at the target rate are returned unchanged.
func (c Clip) Resample(targetRate int) Clip {
	if c.SampleRate == targetRate || c.SampleRate <= 0 || targetRate <= 0 || len(c.Samples) == 0 {
		return Clip{Samples: c.Samples, SampleRate: targetRate}
	}

	ratio := float64(c.SampleRate) / float64(targetRate)
	outLen := int(float64(len(c.Samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(c.Samples)-1 {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(c.Samples[idx])
		b := float64(c.Samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}

	return Clip{Samples: out, SampleRate: targetRate}
}
