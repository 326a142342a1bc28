package pulse

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const cookieLength = 256

// LoadCookie returns the authentication cookie. An explicit path must exist.
// Otherwise the usual locations are tried and a nil cookie is returned when
// none holds one; Handshake then sends an all-zero cookie and the server
// authenticates by credentials.
func LoadCookie(path string) ([]byte, error) {
	if path != "" {
		return readCookie(path)
	}
	for _, p := range cookiePaths() {
		cookie, err := readCookie(p)
		if err == nil {
			return cookie, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, nil
}

func cookiePaths() []string {
	var paths []string
	if p := os.Getenv("PULSE_COOKIE"); p != "" {
		paths = append(paths, p)
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "pulse", "cookie"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "pulse", "cookie"),
			filepath.Join(home, ".pulse-cookie"),
		)
	}
	return paths
}

func readCookie(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cookie := make([]byte, cookieLength)
	if _, err := io.ReadFull(f, cookie); err != nil {
		return nil, fmt.Errorf("read cookie %s: %w", path, err)
	}
	return cookie, nil
}
