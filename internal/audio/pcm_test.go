package audio

import (
	"math"
	"testing"
	"time"
)

func TestQuantizeDequantizeRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -0.25, 0.999, -0.999, 1, -1}

	quantized := Quantize(in)
	back := Dequantize(quantized)

	const tolerance = 1.0 / 32768
	for i := range in {
		diff := math.Abs(float64(back[i] - in[i]))
		if diff > tolerance {
			t.Errorf("sample %d: %f -> %d -> %f, error %f exceeds %f",
				i, in[i], quantized[i], back[i], diff, tolerance)
		}
	}
}

func TestQuantizeClampsOutOfRange(t *testing.T) {
	quantized := Quantize([]float32{2.5, -3.0})

	if quantized[0] != 32767 {
		t.Errorf("over-range sample should clamp to 32767, got %d", quantized[0])
	}
	if quantized[1] != -32768 {
		t.Errorf("under-range sample should clamp to -32768, got %d", quantized[1])
	}
}

func TestQuantizeAsymmetricScale(t *testing.T) {
	quantized := Quantize([]float32{1, -1})
	if quantized[0] != 32767 {
		t.Errorf("full-scale positive should be 32767, got %d", quantized[0])
	}
	if quantized[1] != -32768 {
		t.Errorf("full-scale negative should be -32768, got %d", quantized[1])
	}
}

func TestResampleDownHalvesLength(t *testing.T) {
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * float64(i) / 48))
	}

	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("expected 160 samples after 48k->16k resample of 480, got %d", len(out))
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected same length, got %d", len(out))
	}
	out[0] = 9
	if in[0] == 9 {
		t.Error("Resample should not alias the input slice")
	}
}

func TestBytesSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}

	data := SamplesToBytes(samples)
	if len(data) != len(samples)*BytesPerSample {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(data))
	}

	back, err := BytesToSamples(data)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: %d != %d", i, back[i], samples[i])
		}
	}
}

func TestBytesToSamplesRejectsOddLength(t *testing.T) {
	if _, err := BytesToSamples([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length PCM data")
	}
}

func TestDuration(t *testing.T) {
	// 16000 samples at 16 kHz is exactly one second.
	if d := Duration(32000, 16000); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := Duration(32000, 0); d != 0 {
		t.Errorf("expected 0 for zero rate, got %v", d)
	}
}
