package flac

import "hash"

// writeInterleavedPCM feeds h with the little-endian, sample-interleaved
// PCM reconstruction of samples at the given bit depth, matching the view
// STREAMINFO.MD5sum is computed over (spec.md §4.4).
func writeInterleavedPCM(h hash.Hash, samples [][]int32, bps uint8) {
	if len(samples) == 0 {
		return
	}
	width := int(bps+7) / 8
	nsamples := len(samples[0])
	buf := make([]byte, width)
	for i := 0; i < nsamples; i++ {
		for _, ch := range samples {
			putLE(buf, ch[i], width)
			h.Write(buf)
		}
	}
}

// putLE writes v's low width*8 bits into buf, little-endian.
func putLE(buf []byte, v int32, width int) {
	u := uint32(v)
	for i := 0; i < width; i++ {
		buf[i] = byte(u)
		u >>= 8
	}
}
