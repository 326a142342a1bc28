//go:build !linux

package pulse

import "net"

func writeWithCredentials(conn net.Conn, packet []byte) error {
	_, err := conn.Write(packet)
	return err
}
