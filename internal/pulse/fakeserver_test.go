package pulse

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jfreymuth/pulse/proto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the subset of the native protocol the client uses.
type fakeServer struct {
	version   uint32
	authError uint32

	mu          sync.Mutex
	conn        net.Conn
	cookieLen   int
	props       PropList
	defaultSink string
	entries     []RestoreEntry
	lastMode    UpdateMode
	lastApply   bool
	commands    []uint32
	noExtension bool
	// hang makes the server drop the connection instead of answering this command.
	hang uint32
}

func newFakeServer() *fakeServer {
	return &fakeServer{version: protocolVersion, defaultSink: "builtin"}
}

func (s *fakeServer) serve(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	for {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		d := NewDecoder(payload)
		command, _ := d.GetU32()
		tag, _ := d.GetU32()

		s.mu.Lock()
		s.commands = append(s.commands, command)
		hang := s.hang != 0 && s.hang == command
		s.mu.Unlock()
		if hang {
			return
		}

		resp := s.handle(command, tag, d)
		if resp == nil {
			return
		}
		if err := writeFrame(conn, resp); err != nil {
			return
		}
	}
}

// handle returns nil when the server would drop the connection.
func (s *fakeServer) handle(command, tag uint32, d *Decoder) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch command {
	case proto.OpAuth:
		if s.authError != 0 {
			return errorReply(tag, s.authError)
		}
		d.GetU32()
		cookie, _ := d.GetArbitrary()
		s.cookieLen = len(cookie)
		if len(cookie) != cookieLength {
			// A short cookie is a protocol error; the server hangs up.
			return nil
		}
		return okReply(tag, func(e *Encoder) { e.PutU32(s.version) })

	case proto.OpSetClientName:
		s.props, _ = d.GetPropList()
		return okReply(tag, func(e *Encoder) { e.PutU32(42) })

	case proto.OpSetDefaultSink:
		name, _ := d.GetString()
		if name == "missing" {
			return errorReply(tag, CodeNoEntity)
		}
		s.defaultSink = name
		return okReply(tag, nil)

	case proto.OpGetServerInfo:
		return okReply(tag, func(e *Encoder) {
			e.PutString("pulseaudio")
			e.PutString("17.0")
			e.PutString("alice")
			e.PutString("host")
			e.PutSampleSpec(SampleSpec{Format: 3, Channels: 2, Rate: 44100})
			e.PutString(s.defaultSink)
			e.PutString("builtin.monitor")
			e.PutU32(0xdead)
			e.PutChannelMap(ChannelMap{1, 2})
		})

	case proto.OpExtension:
		return s.handleExtension(tag, d)
	}
	return errorReply(tag, 2)
}

func (s *fakeServer) handleExtension(tag uint32, d *Decoder) []byte {
	d.GetU32()
	name, _ := d.GetString()
	if name != streamRestoreModule || s.noExtension {
		return errorReply(tag, CodeNoExtension)
	}
	sub, _ := d.GetU32()

	switch sub {
	case streamRestoreTest:
		return okReply(tag, func(e *Encoder) { e.PutU32(1) })

	case streamRestoreRead:
		return okReply(tag, func(e *Encoder) {
			for _, entry := range s.entries {
				e.PutString(entry.Name)
				e.PutChannelMap(entry.ChannelMap)
				e.PutCVolume(entry.Volume)
				e.PutString(entry.Device)
				e.PutBool(entry.Mute)
			}
		})

	case streamRestoreWrite:
		mode, _ := d.GetU32()
		apply, _ := d.GetBool()
		s.lastMode, s.lastApply = UpdateMode(mode), apply
		for !d.EOF() {
			var entry RestoreEntry
			entry.Name, _ = d.GetString()
			entry.ChannelMap, _ = d.GetChannelMap()
			entry.Volume, _ = d.GetCVolume()
			entry.Device, _ = d.GetString()
			entry.Mute, _ = d.GetBool()
			s.store(entry)
		}
		return okReply(tag, nil)

	case streamRestoreDelete:
		for !d.EOF() {
			n, _ := d.GetString()
			for i, entry := range s.entries {
				if entry.Name == n {
					s.entries = append(s.entries[:i], s.entries[i+1:]...)
					break
				}
			}
		}
		return okReply(tag, nil)
	}
	return errorReply(tag, CodeInvalid)
}

func (s *fakeServer) store(entry RestoreEntry) {
	for i := range s.entries {
		if s.entries[i].Name == entry.Name {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append(s.entries, entry)
}

func (s *fakeServer) snapshot() (string, []RestoreEntry, []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultSink, append([]RestoreEntry(nil), s.entries...), append([]uint32(nil), s.commands...)
}

func okReply(tag uint32, body func(*Encoder)) []byte {
	var e Encoder
	e.PutU32(proto.OpReply)
	e.PutU32(tag)
	if body != nil {
		body(&e)
	}
	return e.Bytes()
}

func errorReply(tag, code uint32) []byte {
	var e Encoder
	e.PutU32(proto.OpError)
	e.PutU32(tag)
	e.PutU32(code)
	return e.Bytes()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connectFake returns a client that has not yet done the handshake.
func connectFake(t *testing.T, srv *fakeServer) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go srv.serve(serverConn)
	c := NewClient(clientConn, zerolog.Nop())
	t.Cleanup(func() { c.Close() })
	return c
}

// readyClient returns a client connected to srv with the handshake done.
func readyClient(t *testing.T, srv *fakeServer) *Client {
	t.Helper()
	c := connectFake(t, srv)
	cookie := make([]byte, cookieLength)
	require.NoError(t, c.Handshake(testContext(t), cookie, PropList{PropApplicationName: "test"}))
	return c
}
