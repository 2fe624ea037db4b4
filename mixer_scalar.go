//go:build !arm64

package track

// mixChannel is the scalar (non-SIMD) per-channel inner loop: fetch,
// optionally interpolate, advance position honoring loop type, and
// mix into the adapter with the constant-power panning curve.
func mixChannel(c *Channel, s *Sample, adapter BufferAdapter, start, n int, interpolate bool) {
	mixChannelScalar(c, s, adapter, start, n, interpolate)
}
