package pulse

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultPort = "4713"

// Address is a dialable server location.
type Address struct {
	Network string // "unix", "tcp", "tcp4" or "tcp6"
	Addr    string
}

func (a Address) String() string { return a.Network + ":" + a.Addr }

// ParseAddress understands the server string forms used by PULSE_SERVER:
// "unix:/path", "/path", "tcp:host[:port]", "tcp4:...", "tcp6:..." and
// "host[:port]". A leading "{machine-id}" qualifier is ignored.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return Address{}, fmt.Errorf("invalid server address %q", s)
		}
		s = s[end+1:]
	}
	if s == "" {
		return Address{}, fmt.Errorf("empty server address")
	}

	switch {
	case strings.HasPrefix(s, "unix:"):
		return Address{Network: "unix", Addr: strings.TrimPrefix(s, "unix:")}, nil
	case strings.HasPrefix(s, "/"):
		return Address{Network: "unix", Addr: s}, nil
	}

	network := "tcp"
	for _, prefix := range []string{"tcp4:", "tcp6:", "tcp:"} {
		if strings.HasPrefix(s, prefix) {
			network = strings.TrimSuffix(prefix, ":")
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = strings.Trim(s, "[]"), defaultPort
	}
	if host == "" {
		return Address{}, fmt.Errorf("invalid server address %q: missing host", s)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return Address{}, fmt.Errorf("invalid server address %q: bad port", s)
	}
	return Address{Network: network, Addr: net.JoinHostPort(host, port)}, nil
}

// Candidates lists the addresses to try, in order. An explicit server string
// wins; otherwise PULSE_SERVER, then the per-user and system runtime sockets.
func Candidates(server string) ([]Address, error) {
	if server == "" {
		server = os.Getenv("PULSE_SERVER")
	}
	if server != "" {
		var out []Address
		for _, field := range strings.Fields(server) {
			addr, err := ParseAddress(field)
			if err != nil {
				return nil, err
			}
			out = append(out, addr)
		}
		if len(out) == 0 {
			return nil, ErrNoServer
		}
		return out, nil
	}

	var paths []string
	if dir := os.Getenv("PULSE_RUNTIME_PATH"); dir != "" {
		paths = append(paths, filepath.Join(dir, "native"))
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		paths = append(paths, filepath.Join(dir, "pulse", "native"))
	}
	paths = append(paths,
		filepath.Join("/run/user", strconv.Itoa(os.Getuid()), "pulse", "native"),
		"/var/run/pulse/native",
	)

	out := make([]Address, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, Address{Network: "unix", Addr: p})
	}
	return out, nil
}
