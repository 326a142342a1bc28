package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarth-shah20/sinkswitch/internal/pulse"
)

type fakeAudio struct {
	opts        pulse.Options
	defaultSink string
	entries     []pulse.RestoreEntry
	written     []pulse.RestoreEntry
	forgotten   []string
	closed      bool
	drainErr    error
}

func (f *fakeAudio) SetDefaultSink(name string) error {
	f.defaultSink = name
	return nil
}

func (f *fakeAudio) ReadStreamRestore(ctx context.Context) ([]pulse.RestoreEntry, error) {
	return f.entries, nil
}

func (f *fakeAudio) WriteStreamRestore(mode pulse.UpdateMode, apply bool, entries ...pulse.RestoreEntry) error {
	f.written = append(f.written, entries...)
	return nil
}

func (f *fakeAudio) Drain(ctx context.Context) error { return f.drainErr }

func (f *fakeAudio) CurrentDefaultSink(ctx context.Context) (string, error) {
	return f.defaultSink, nil
}

func (f *fakeAudio) ListEntries(ctx context.Context) ([]pulse.RestoreEntry, error) {
	return f.entries, nil
}

func (f *fakeAudio) Forget(ctx context.Context, names ...string) error {
	f.forgotten = append(f.forgotten, names...)
	return nil
}

func (f *fakeAudio) Close() error {
	f.closed = true
	return nil
}

func twoEntries() []pulse.RestoreEntry {
	return []pulse.RestoreEntry{
		{
			Name:       "sink-input-by-application-name:Firefox",
			ChannelMap: pulse.ChannelMap{1, 2},
			Volume:     pulse.CVolume{0x8000, 0x8000},
			Device:     "alsa_output.analog-stereo",
		},
		{Name: "sink-input-by-media-role:event", Mute: true},
	}
}

func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	reset(rootCmd.Flags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

// runCommand executes the CLI with args against fake and returns stdout.
func runCommand(t *testing.T, fake *fakeAudio, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	prev := connect
	connect = func(ctx context.Context, opts pulse.Options) (audioServer, error) {
		fake.opts = opts
		return fake, nil
	}
	t.Cleanup(func() { connect = prev })

	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSwitchMovesEntries(t *testing.T) {
	fake := &fakeAudio{entries: twoEntries()}

	out, err := runCommand(t, fake, "bluez_sink.headset")
	require.NoError(t, err)

	assert.Contains(t, out, "setting default sink to bluez_sink.headset")
	assert.Contains(t, out, "moved 2 of 2 stream-restore entries to bluez_sink.headset")
	assert.Equal(t, "bluez_sink.headset", fake.defaultSink)
	require.Len(t, fake.written, 2)
	for _, e := range fake.written {
		assert.Equal(t, "bluez_sink.headset", e.Device)
	}
	assert.True(t, fake.closed)
}

func TestSwitchDryRun(t *testing.T) {
	fake := &fakeAudio{entries: twoEntries(), defaultSink: "builtin"}

	out, err := runCommand(t, fake, "--dry-run", "hdmi")
	require.NoError(t, err)

	assert.Contains(t, out, "would move 2 stream-restore entries to hdmi")
	assert.Contains(t, out, "sink-input-by-media-role:event: (none) -> hdmi")
	assert.Equal(t, "builtin", fake.defaultSink)
	assert.Empty(t, fake.written)
}

func TestSwitchRequiresExactlyOneSink(t *testing.T) {
	_, err := runCommand(t, &fakeAudio{})
	assert.Error(t, err)

	_, err = runCommand(t, &fakeAudio{}, "a", "b")
	assert.Error(t, err)
}

func TestSwitchReportsServerFailure(t *testing.T) {
	fake := &fakeAudio{entries: twoEntries(), drainErr: pulse.ErrNoEntity}

	_, err := runCommand(t, fake, "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, pulse.ErrNoEntity)
	assert.True(t, fake.closed)
}

func TestConnectFailure(t *testing.T) {
	prev := connect
	t.Cleanup(func() { connect = prev })

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	resetFlags()
	connect = func(ctx context.Context, opts pulse.Options) (audioServer, error) {
		return nil, pulse.ErrNoServer
	}
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--log-level", "disabled", "hdmi"})

	err := rootCmd.Execute()
	assert.True(t, errors.Is(err, pulse.ErrNoServer))
}

func TestServerOptionsFromFlags(t *testing.T) {
	fake := &fakeAudio{}

	_, err := runCommand(t, fake, "--server", "tcp:media-box", "--cookie", "/tmp/cookie", "hdmi")
	require.NoError(t, err)

	assert.Equal(t, "tcp:media-box", fake.opts.Server)
	assert.Equal(t, "/tmp/cookie", fake.opts.CookiePath)
	assert.Equal(t, "sinkswitch", fake.opts.Properties[pulse.PropApplicationName])
	assert.Equal(t, "sinkswitch", fake.opts.Properties[pulse.PropApplicationID])
}

func TestEntriesTable(t *testing.T) {
	out, err := runCommand(t, &fakeAudio{entries: twoEntries()}, "entries")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, "alsa_output.analog-stereo")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "true")
}

func TestEntriesEmpty(t *testing.T) {
	out, err := runCommand(t, &fakeAudio{}, "entries")
	require.NoError(t, err)
	assert.Contains(t, out, "No stream-restore entries found.")
}

func TestCurrent(t *testing.T) {
	out, err := runCommand(t, &fakeAudio{defaultSink: "hdmi"}, "current")
	require.NoError(t, err)
	assert.Equal(t, "hdmi\n", out)

	out, err = runCommand(t, &fakeAudio{}, "current")
	require.NoError(t, err)
	assert.Contains(t, out, "No default sink set.")
}

func TestForget(t *testing.T) {
	fake := &fakeAudio{}
	out, err := runCommand(t, fake, "forget", "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, fake.forgotten)
	assert.Contains(t, out, "Forgot 2 stream-restore entries.")

	_, err = runCommand(t, fake, "forget")
	assert.Error(t, err)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"entries", "current", "forget"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
