package midi

import (
	"fmt"
)

const Channels = 16

// ChannelSet is either a single zero-based channel or all 16 channels.
type ChannelSet struct {
	channel   uint8
	broadcast bool
}

var Broadcast = ChannelSet{broadcast: true}

// ChannelsFor resolves configured 1-based channel, nil or out of range means broadcast.
func ChannelsFor(channel *int) ChannelSet {
	if channel == nil || *channel < 1 || *channel > Channels {
		return Broadcast
	}
	return ChannelSet{channel: uint8(*channel - 1)}
}

// Single returns set for zero-based channel.
func Single(channel uint8) ChannelSet {
	return ChannelSet{channel: channel & 0b1111}
}

func (c ChannelSet) IsBroadcast() bool {
	return c.broadcast
}

func (c ChannelSet) List() []uint8 {
	if !c.broadcast {
		return []uint8{c.channel}
	}
	var channels = make([]uint8, Channels)
	for i := range channels {
		channels[i] = uint8(i)
	}
	return channels
}

func (c ChannelSet) String() string {
	if c.broadcast {
		return "all"
	}
	return fmt.Sprintf("%d", c.channel+1)
}
