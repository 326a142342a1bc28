// Package switcher moves the default sink and the stored per-stream device
// preferences over to a new sink in one pass.
package switcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sarth-shah20/sinkswitch/internal/pulse"
)

// Server is the part of the audio server connection the switch needs.
// SetDefaultSink and WriteStreamRestore only submit; Drain reports how the
// submitted requests ended.
type Server interface {
	SetDefaultSink(name string) error
	ReadStreamRestore(ctx context.Context) ([]pulse.RestoreEntry, error)
	WriteStreamRestore(mode pulse.UpdateMode, applyImmediately bool, entries ...pulse.RestoreEntry) error
	Drain(ctx context.Context) error
}

// Change records one entry's device before and after the switch.
type Change struct {
	Name string
	From string
	To   string
}

type Result struct {
	Entries   int
	Rewritten int
	Failed    int
	Changes   []Change
}

type Switcher struct {
	server Server
	log    zerolog.Logger
	dryRun bool
}

// New returns a Switcher. With dryRun set, Run only reads the stored entries
// and reports what it would change.
func New(server Server, log zerolog.Logger, dryRun bool) *Switcher {
	return &Switcher{server: server, log: log, dryRun: dryRun}
}

// Run makes sink the default and rewrites the device of every stored
// stream-restore entry to sink, leaving name, channel map, volume and mute
// untouched. A failure on one entry does not stop the others; all failures
// are returned joined.
func (s *Switcher) Run(ctx context.Context, sink string) (*Result, error) {
	if sink == "" {
		return nil, errors.New("sink name is required")
	}

	if !s.dryRun {
		if err := s.server.SetDefaultSink(sink); err != nil {
			return nil, fmt.Errorf("failed to set default sink: %w", err)
		}
	}

	entries, err := s.server.ReadStreamRestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream-restore entries: %w", err)
	}

	res := &Result{Entries: len(entries)}
	var errs []error
	for _, e := range entries {
		res.Changes = append(res.Changes, Change{Name: e.Name, From: e.Device, To: sink})
		if s.dryRun {
			continue
		}

		e.Device = sink
		if err := s.server.WriteStreamRestore(pulse.UpdateReplace, true, e); err != nil {
			s.log.Warn().Err(err).Str("entry", e.Name).Msg("failed to rewrite stream-restore entry")
			errs = append(errs, fmt.Errorf("entry %q: %w", e.Name, err))
			res.Failed++
			continue
		}
		s.log.Debug().Str("entry", e.Name).Str("device", sink).Msg("rewrote stream-restore entry")
		res.Rewritten++
	}

	if err := s.server.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server rejected a request: %w", err))
	}
	return res, errors.Join(errs...)
}
