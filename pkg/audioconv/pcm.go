package audioconv

import "math"

// ToMono16k downmixes interleaved samples and resamples them to SampleRate.
func ToMono16k(in []float32, channels, rate int) []float32 {
	return Resample(Downmix(in, channels), rate, SampleRate)
}

// IntsToFloat32 scales signed integer samples of the given bit depth into
// [-1, 1].
func IntsToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(max(-1, min(float64(v)*scale, 1)))
	}
	return out
}

func Int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

// Downmix averages interleaved channels into one.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between rates with linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}

	ratio := float64(to) / float64(from)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	last := len(in) - 1
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

// RMS is the root mean square of a frame.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var s float64
	for _, x := range frame {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(frame)))
}
