// Package audio implements the PCM pipeline shared by capture and playback:
// float clamping and quantization to signed 16-bit little-endian samples,
// linear resampling, fixed-size framing, and a minimal WAV container wrapper.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// BytesPerSample is the width of one signed 16-bit PCM sample.
const BytesPerSample = 2

// Clamp limits a sample to the [-1, 1] range to prevent wraparound artifacts
// during quantization.
func Clamp(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}

// Quantize maps floating-point samples in [-1, 1] to signed 16-bit PCM.
// The scale is asymmetric, matching the signed range: negative samples scale
// by 32768, non-negative by 32767.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		s = Clamp(s)
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// Dequantize is the inverse of Quantize, reproducing the original values
// within quantization error.
func Dequantize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		if s < 0 {
			out[i] = float32(s) / 32768
		} else {
			out[i] = float32(s) / 32767
		}
	}
	return out
}

// Resample converts samples from one rate to another by linear interpolation.
// It is cheap and good enough for speech heading into a recognizer.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// SamplesToBytes serializes samples as little-endian 16-bit PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

// BytesToSamples parses little-endian 16-bit PCM bytes. The byte length must
// be an even multiple of the sample width.
func BytesToSamples(data []byte) ([]int16, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("PCM byte length must be even, got %d", len(data))
	}
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples, nil
}

// Duration returns the play time of a raw PCM byte slice at the given rate.
func Duration(numBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := numBytes / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
