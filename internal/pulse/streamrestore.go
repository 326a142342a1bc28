package pulse

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse/proto"
)

const streamRestoreModule = "module-stream-restore"

// Sub-commands of the stream-restore extension.
const (
	streamRestoreTest   = 0
	streamRestoreRead   = 1
	streamRestoreWrite  = 2
	streamRestoreDelete = 3
)

// UpdateMode selects how a write combines with the stored table.
type UpdateMode uint32

const (
	UpdateSet     UpdateMode = 0 // replace the whole table
	UpdateMerge   UpdateMode = 1 // add entries, keep existing ones with the same name
	UpdateReplace UpdateMode = 2 // add entries, overwrite existing ones with the same name
)

// RestoreEntry is one remembered stream preference.
type RestoreEntry struct {
	Name       string
	ChannelMap ChannelMap
	Volume     CVolume
	Device     string
	Mute       bool
}

// VolumePercent returns the average channel volume as a percentage, or -1
// when the entry stores no volume.
func (e RestoreEntry) VolumePercent() int {
	if len(e.Volume) == 0 {
		return -1
	}
	var sum uint64
	for _, v := range e.Volume {
		sum += uint64(v)
	}
	avg := sum / uint64(len(e.Volume))
	return int((avg*100 + volumeNorm/2) / volumeNorm)
}

func extension(sub uint32, args func(*Encoder)) func(*Encoder) {
	return func(e *Encoder) {
		e.PutU32(invalidIndex)
		e.PutString(streamRestoreModule)
		e.PutU32(sub)
		if args != nil {
			args(e)
		}
	}
}

// TestStreamRestore returns the extension's version, failing with
// ErrNoExtension when the module is not loaded.
func (c *Client) TestStreamRestore(ctx context.Context) (uint32, error) {
	d, err := c.Request(ctx, proto.OpExtension, extension(streamRestoreTest, nil))
	if err != nil {
		return 0, err
	}
	return d.GetU32()
}

// ReadStreamRestore returns every stored entry.
func (c *Client) ReadStreamRestore(ctx context.Context) ([]RestoreEntry, error) {
	d, err := c.Request(ctx, proto.OpExtension, extension(streamRestoreRead, nil))
	if err != nil {
		return nil, err
	}

	var entries []RestoreEntry
	for !d.EOF() {
		var e RestoreEntry
		if e.Name, err = d.GetString(); err != nil {
			return nil, err
		}
		if e.ChannelMap, err = d.GetChannelMap(); err != nil {
			return nil, err
		}
		if e.Volume, err = d.GetCVolume(); err != nil {
			return nil, err
		}
		if e.Device, err = d.GetString(); err != nil {
			return nil, err
		}
		if e.Mute, err = d.GetBool(); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteStreamRestore submits entries for storage. Entries are checked before
// anything is sent: each needs a name, at most maxChannels channels, and a
// stored volume must have one value per mapped channel.
func (c *Client) WriteStreamRestore(mode UpdateMode, applyImmediately bool, entries ...RestoreEntry) error {
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("%w: stream-restore entry without a name", ErrInvalid)
		}
		if len(e.ChannelMap) > maxChannels {
			return fmt.Errorf("%w: entry %q maps %d channels, at most %d allowed",
				ErrInvalid, e.Name, len(e.ChannelMap), maxChannels)
		}
		if len(e.Volume) > 0 && len(e.Volume) != len(e.ChannelMap) {
			return fmt.Errorf("%w: entry %q has %d volumes for %d channels",
				ErrInvalid, e.Name, len(e.Volume), len(e.ChannelMap))
		}
	}

	_, err := c.Submit(proto.OpExtension, extension(streamRestoreWrite, func(enc *Encoder) {
		enc.PutU32(uint32(mode))
		enc.PutBool(applyImmediately)
		for _, e := range entries {
			enc.PutString(e.Name)
			enc.PutChannelMap(e.ChannelMap)
			enc.PutCVolume(e.Volume)
			enc.PutString(e.Device)
			enc.PutBool(e.Mute)
		}
	}))
	return err
}

// DeleteStreamRestore submits removal of the named entries.
func (c *Client) DeleteStreamRestore(names ...string) error {
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("%w: empty entry name", ErrInvalid)
		}
	}
	_, err := c.Submit(proto.OpExtension, extension(streamRestoreDelete, func(enc *Encoder) {
		for _, n := range names {
			enc.PutString(n)
		}
	}))
	return err
}
