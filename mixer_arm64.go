//go:build arm64

package track

// A NEON-accelerated inner loop would replace this; for now arm64
// falls back to the scalar mixer, same as amd64.
func mixChannel(c *Channel, s *Sample, adapter BufferAdapter, start, n int, interpolate bool) {
	mixChannelScalar(c, s, adapter, start, n, interpolate)
}
