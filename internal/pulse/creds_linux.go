//go:build linux

package pulse

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// writeWithCredentials sends an already framed packet, attaching
// SCM_CREDENTIALS when conn is a unix socket.
func writeWithCredentials(conn net.Conn, packet []byte) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		_, err := conn.Write(packet)
		return err
	}
	oob := unix.UnixCredentials(&unix.Ucred{
		Pid: int32(os.Getpid()),
		Uid: uint32(os.Getuid()),
		Gid: uint32(os.Getgid()),
	})
	n, _, err := uc.WriteMsgUnix(packet, oob, nil)
	if err == nil && n < len(packet) {
		_, err = uc.Write(packet[n:])
	}
	return err
}
