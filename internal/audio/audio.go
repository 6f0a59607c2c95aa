package audio

import (
	"encoding/base64"
	"encoding/binary"
)

const (
	// TargetSampleRate is the rate the provider ingests: 24 kHz mono PCM16.
	TargetSampleRate = 24000

	// MinFrameSamples is the smallest frame worth putting on the wire,
	// roughly 100ms at the target rate. Smaller frames stay pending.
	MinFrameSamples = 2400
)

// Resample converts samples captured at sourceRate down to the target rate
// using block averaging: each output sample is the mean of the source
// samples whose fractional positions fall inside its span. This is a box
// filter, not interpolation, which is good enough for speech and cheap.
// When sourceRate already matches the target rate the input is returned
// unchanged.
func Resample(samples []float32, sourceRate int) []float32 {
	if sourceRate == TargetSampleRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(sourceRate) / float64(TargetSampleRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}
		var sum float64
		for j := start; j < end; j++ {
			sum += float64(samples[j])
		}
		out[i] = float32(sum / float64(end-start))
	}
	return out
}

// Quantize clamps each sample to [-1, 1] and converts it to signed 16-bit
// little-endian PCM. Output length is always 2 bytes per input sample.
func Quantize(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodeFrame produces the text-safe wire form of a frame: quantized PCM16
// bytes, base64 encoded. Deterministic: 2 bytes per sample before the
// fixed 4/3 base64 expansion.
func EncodeFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Quantize(samples))
}

// Accumulator collects resampled audio until at least MinFrameSamples are
// pending, then releases the whole backlog as one frame. It always emits
// everything pending, never just the newest chunk, so no buffered audio is
// silently dropped. Not safe for concurrent use; callers feed it from a
// single producer.
type Accumulator struct {
	pending []float32
}

// Push resamples chunk from sourceRate and appends it to the pending
// buffer. If the buffer has reached the minimum frame size the entire
// backlog is returned as a frame and the buffer resets; otherwise Push
// returns nil.
func (a *Accumulator) Push(chunk []float32, sourceRate int) []float32 {
	a.pending = append(a.pending, Resample(chunk, sourceRate)...)
	if len(a.pending) < MinFrameSamples {
		return nil
	}
	frame := a.pending
	a.pending = nil
	return frame
}

// Pending reports how many resampled samples are waiting for the next
// frame.
func (a *Accumulator) Pending() int {
	return len(a.pending)
}

// Drain returns whatever is pending regardless of the frame threshold and
// resets the buffer. Used on stop so the tail of the capture is not lost.
func (a *Accumulator) Drain() []float32 {
	frame := a.pending
	a.pending = nil
	return frame
}
