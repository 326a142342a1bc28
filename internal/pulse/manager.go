package pulse

import (
	"context"
	"fmt"
	"sort"
)

// Property keys announced with SET_CLIENT_NAME.
const (
	PropApplicationName     = "application.name"
	PropApplicationID       = "application.id"
	PropApplicationIconName = "application.icon_name"
	PropApplicationVersion  = "application.version"
)

// Manager handles all interactions with the audio server
type Manager struct {
	*Client
}

// NewManager connects to the audio server described by opts
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	c, err := Dial(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audio server: %w", err)
	}
	return &Manager{Client: c}, nil
}

// CurrentDefaultSink returns the name of the sink the server routes to by default.
func (m *Manager) CurrentDefaultSink(ctx context.Context) (string, error) {
	info, err := m.ServerInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get server info: %w", err)
	}
	return info.DefaultSinkName, nil
}

// ListEntries returns the stored stream-restore entries sorted by name
func (m *Manager) ListEntries(ctx context.Context) ([]RestoreEntry, error) {
	entries, err := m.ReadStreamRestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream-restore entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Forget deletes the named entries and waits for the server to confirm.
func (m *Manager) Forget(ctx context.Context, names ...string) error {
	if err := m.DeleteStreamRestore(names...); err != nil {
		return fmt.Errorf("failed to delete stream-restore entries: %w", err)
	}
	if err := m.Drain(ctx); err != nil {
		return fmt.Errorf("failed to delete stream-restore entries: %w", err)
	}
	return nil
}
