package pcap

import (
	"io"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// Reader feeds raw frames from a pcap file into a capture session. It
// implements gopacket.PacketDataSource, so a session consumes it exactly
// like a live handle. End-of-file is reported once through the optional EOF
// handler; the usual wiring lets that handler invalidate the session so the
// capture loop exits on the next read error.
type Reader struct {
	handle *pcap.Handle

	eofOnce sync.Once
	onEOF   func()
}

// NewReader opens a pcap file for replay.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// SetEOFHandler registers a function called once when the file is exhausted.
func (r *Reader) SetEOFHandler(fn func()) {
	r.onEOF = fn
}

// ReadPacketData returns the next raw frame from the file.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := r.handle.ReadPacketData()
	if err == io.EOF && r.onEOF != nil {
		r.eofOnce.Do(r.onEOF)
	}
	return data, ci, err
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}
