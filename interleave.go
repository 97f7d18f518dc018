package soundcheck

import "github.com/audiodiag/soundcheck/driver"

// directionChannels filters records to the given direction, preserving the
// order in which the driver returned them.
func directionChannels(records []driver.BufferInfo, input bool) []driver.BufferInfo {
	var out []driver.BufferInfo
	for _, rec := range records {
		if rec.Input == input {
			out = append(out, rec)
		}
	}

	return out
}

// gatherInterleaved assembles one interleaved block from the per-channel
// buffers of a single direction. The result holds frames*channels samples
// of the given byte width, frame-major.
//
// Buffer geometry is fixed at allocation time, so a short buffer here is a
// harness bug and panics.
func gatherInterleaved(records []driver.BufferInfo, input bool, slot int32, frames, width int) []byte {
	if slot != 0 && slot != 1 {
		panic(bugf("gather from buffer slot %d (only slots 0 and 1 exist)", slot))
	}

	channels := directionChannels(records, input)
	out := make([]byte, 0, frames*len(channels)*width)

	for frame := 0; frame < frames; frame++ {
		for _, ch := range channels {
			buf := ch.Buffers[slot]
			off := frame * width
			if off+width > len(buf) {
				panic(bugf("channel %d buffer exhausted at frame %d of %d", ch.Channel, frame, frames))
			}
			out = append(out, buf[off:off+width]...)
		}
	}

	if len(out) != frames*len(channels)*width {
		panic(bugf("gathered %d bytes, expected %d", len(out), frames*len(channels)*width))
	}

	return out
}

// scatterInterleaved spreads an interleaved block across the per-channel
// buffers of a single direction. data must hold whole frames.
func scatterInterleaved(data []byte, records []driver.BufferInfo, input bool, slot int32, width int) {
	if slot != 0 && slot != 1 {
		panic(bugf("scatter to buffer slot %d (only slots 0 and 1 exist)", slot))
	}

	channels := directionChannels(records, input)
	stride := len(channels) * width
	if stride == 0 {
		if len(data) > 0 {
			panic(bugf("%d bytes to scatter but no channels to receive them", len(data)))
		}

		return
	}
	if len(data)%stride != 0 {
		panic(bugf("scatter of %d bytes is not a whole number of %d-byte frames", len(data), stride))
	}

	frames := len(data) / stride
	for frame := 0; frame < frames; frame++ {
		for i, ch := range channels {
			buf := ch.Buffers[slot]
			off := frame * width
			if off+width > len(buf) {
				panic(bugf("channel %d buffer exhausted at frame %d of %d", ch.Channel, frame, frames))
			}
			src := frame*stride + i*width
			copy(buf[off:off+width], data[src:src+width])
		}
	}
}
