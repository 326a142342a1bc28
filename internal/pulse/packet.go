package pulse

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	descriptorSize = 20
	controlChannel = 0xFFFFFFFF
	maxFrameSize   = 16 * 1024 * 1024
)

// frame prefixes payload with a control-channel descriptor.
func frame(payload []byte) []byte {
	buf := make([]byte, descriptorSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[4:], controlChannel)
	copy(buf[descriptorSize:], payload)
	return buf
}

func writeFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(frame(payload))
	return err
}

// readFrame reads packets until a control packet arrives and returns its
// payload. Memory-block packets belong to streams, which this client never
// opens, so they are discarded.
func readFrame(r io.Reader) ([]byte, error) {
	var desc [descriptorSize]byte
	for {
		if _, err := io.ReadFull(r, desc[:]); err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(desc[0:])
		channel := binary.BigEndian.Uint32(desc[4:])
		if length > maxFrameSize {
			return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		if channel == controlChannel {
			return payload, nil
		}
	}
}
