package frame

import "fmt"

// Channels specifies the order of audio samples within a frame, including
// any inter-channel decorrelation applied at encode time.
type Channels uint8

// Channel assignments, matching the 4-bit channel_assignment field of a
// frame header.
const (
	// ChannelsMono has 1 channel: mono.
	ChannelsMono Channels = iota
	// ChannelsLR has 2 channels: left, right.
	ChannelsLR
	// ChannelsLRC has 3 channels: left, right, center.
	ChannelsLRC
	// ChannelsLRLsRs has 4 channels: left, right, left surround, right
	// surround.
	ChannelsLRLsRs
	// ChannelsLRCLsRs has 5 channels: left, right, center, left surround,
	// right surround.
	ChannelsLRCLsRs
	// ChannelsLRCLfeLsRs has 6 channels: left, right, center, LFE, left
	// surround, right surround.
	ChannelsLRCLfeLsRs
	// ChannelsLRCLfeCsSlSr has 7 channels: left, right, center, LFE, center
	// surround, side left, side right.
	ChannelsLRCLfeCsSlSr
	// ChannelsLRCLfeLsRsSlSr has 8 channels: left, right, center, LFE, left
	// surround, right surround, side left, side right.
	ChannelsLRCLfeLsRsSlSr
	// ChannelsLeftSide has 2 channels: left, side; using inter-channel
	// decorrelation.
	ChannelsLeftSide
	// ChannelsSideRight has 2 channels: side, right; using inter-channel
	// decorrelation.
	ChannelsSideRight
	// ChannelsMidSide has 2 channels: mid, side; using inter-channel
	// decorrelation.
	ChannelsMidSide
)

// channelCounts maps a Channels value to its subframe count.
var channelCounts = map[Channels]int{
	ChannelsMono:           1,
	ChannelsLR:             2,
	ChannelsLRC:            3,
	ChannelsLRLsRs:         4,
	ChannelsLRCLsRs:        5,
	ChannelsLRCLfeLsRs:     6,
	ChannelsLRCLfeCsSlSr:   7,
	ChannelsLRCLfeLsRsSlSr: 8,
	ChannelsLeftSide:       2,
	ChannelsSideRight:      2,
	ChannelsMidSide:        2,
}

// Count returns the number of subframes (channels) encoded for this channel
// assignment.
func (c Channels) Count() int {
	n, ok := channelCounts[c]
	if !ok {
		panic(fmt.Errorf("frame.Channels.Count: unknown channel assignment %v", c))
	}
	return n
}

func (c Channels) String() string {
	switch c {
	case ChannelsMono:
		return "mono"
	case ChannelsLR:
		return "left/right"
	case ChannelsLRC:
		return "left/right/center"
	case ChannelsLRLsRs:
		return "left/right/surround left/surround right"
	case ChannelsLRCLsRs:
		return "left/right/center/surround left/surround right"
	case ChannelsLRCLfeLsRs:
		return "left/right/center/LFE/surround left/surround right"
	case ChannelsLRCLfeCsSlSr:
		return "left/right/center/LFE/surround center/side left/side right"
	case ChannelsLRCLfeLsRsSlSr:
		return "left/right/center/LFE/surround left/surround right/side left/side right"
	case ChannelsLeftSide:
		return "left/side"
	case ChannelsSideRight:
		return "side/right"
	case ChannelsMidSide:
		return "mid/side"
	default:
		return fmt.Sprintf("Channels(%d)", uint8(c))
	}
}

// decorrelated reports whether the two subframes of a stereo frame were
// encoded using an inter-channel decorrelation transform, requiring
// reconstruction on decode.
func (c Channels) decorrelated() bool {
	switch c {
	case ChannelsLeftSide, ChannelsSideRight, ChannelsMidSide:
		return true
	default:
		return false
	}
}

// Reconstruct undoes the inter-channel decorrelation transform selected by
// c, turning the two raw decoded subframe channels back into left/right
// PCM samples in place. samples[0] and samples[1] are the subframes as
// decoded, in storage order; on return they hold left and right.
func (c Channels) Reconstruct(samples [][]int32) error {
	if !c.decorrelated() {
		return nil
	}
	if len(samples) != 2 {
		return fmt.Errorf("frame.Channels.reconstruct: expected 2 channels for %v, got %d", c, len(samples))
	}
	a, b := samples[0], samples[1]
	if len(a) != len(b) {
		return fmt.Errorf("frame.Channels.reconstruct: channel length mismatch; %d != %d", len(a), len(b))
	}
	switch c {
	case ChannelsLeftSide:
		// a = left, b = side = left - right ⇒ right = left - side.
		for i := range a {
			b[i] = a[i] - b[i]
		}
	case ChannelsSideRight:
		// a = side = left - right, b = right ⇒ left = side + right.
		for i := range a {
			left := a[i] + b[i]
			a[i] = left
		}
	case ChannelsMidSide:
		// a = mid = (left + right) >> 1 (floor, carrying the parity bit
		// shifted into the side channel's low bit), b = side = left - right.
		for i := range a {
			mid := a[i]
			side := b[i]
			mid = mid<<1 | (side & 1)
			left := (mid + side) >> 1
			right := (mid - side) >> 1
			a[i] = left
			b[i] = right
		}
	}
	return nil
}

// Decorrelate applies the inter-channel decorrelation transform selected by
// c to a stereo pair of left/right PCM samples. It returns the two
// transformed channels a, b in storage order, ready to be subframe-encoded
// independently; left and right are not modified, and a derived side or mid
// channel is a newly allocated slice.
func (c Channels) Decorrelate(left, right []int32) (a, b []int32, err error) {
	if len(left) != len(right) {
		return nil, nil, fmt.Errorf("frame.Channels.decorrelate: channel length mismatch; %d != %d", len(left), len(right))
	}
	switch c {
	case ChannelsLR, ChannelsLRC, ChannelsLRLsRs, ChannelsLRCLsRs, ChannelsLRCLfeLsRs, ChannelsLRCLfeCsSlSr, ChannelsLRCLfeLsRsSlSr, ChannelsMono:
		return left, right, nil
	case ChannelsLeftSide:
		side := make([]int32, len(left))
		for i := range left {
			side[i] = left[i] - right[i]
		}
		return left, side, nil
	case ChannelsSideRight:
		side := make([]int32, len(left))
		for i := range left {
			side[i] = left[i] - right[i]
		}
		return side, right, nil
	case ChannelsMidSide:
		mid := make([]int32, len(left))
		side := make([]int32, len(left))
		for i := range left {
			side[i] = left[i] - right[i]
			mid[i] = (left[i] + right[i]) >> 1
		}
		return mid, side, nil
	default:
		return nil, nil, fmt.Errorf("frame.Channels.decorrelate: unsupported channel assignment %v", c)
	}
}

// bitsPerSample returns the effective bits-per-sample of subframe ch (0 or
// 1) after inter-channel decorrelation: the side channel needs one extra
// bit of headroom since it is a difference of two bps-bit signals.
func (c Channels) bitsPerSample(ch int, bps uint8) uint8 {
	switch c {
	case ChannelsLeftSide:
		if ch == 1 {
			return bps + 1
		}
	case ChannelsSideRight:
		if ch == 0 {
			return bps + 1
		}
	case ChannelsMidSide:
		if ch == 1 {
			return bps + 1
		}
	}
	return bps
}
