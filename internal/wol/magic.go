// Package wol builds and broadcasts Wake-on-LAN magic packets.
package wol

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/mac"
)

const (
	// DefaultBroadcast is the limited broadcast address.
	DefaultBroadcast = "255.255.255.255"
	// DefaultPort is the discard port conventionally used for WOL.
	DefaultPort = 9
	// PacketLen is 6 bytes of 0xFF followed by 16 copies of the 6-byte address.
	PacketLen = headerLen + repeats*6

	headerLen = 6
	repeats   = 16

	defaultWriteTimeout = 2 * time.Second
)

// BuildPacket returns the 102-byte magic packet for a MAC address in any
// separator style.
func BuildPacket(macAddr string) ([]byte, error) {
	norm, ok := mac.Normalize(macAddr)
	if !ok {
		return nil, errors.New(errors.ErrValidation,
			"Invalid MAC address: "+macAddr,
			"Use six hex byte pairs, e.g. AA:BB:CC:11:22:33")
	}
	hw, err := mac.Bytes(norm)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrValidation, "Invalid MAC address: "+macAddr, "")
	}

	packet := make([]byte, 0, PacketLen)
	for i := 0; i < headerLen; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < repeats; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// Sender sends magic packets as single UDP datagrams. There is no retry:
// callers that need confirmation follow up with a liveness probe.
type Sender struct {
	port int
	log  logger.Logger
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewSender creates a sender targeting the given UDP port (0 means DefaultPort).
func NewSender(port int, log logger.Logger) *Sender {
	if port <= 0 {
		port = DefaultPort
	}
	if log == nil {
		log = logger.Noop()
	}
	// Go sets SO_BROADCAST on every UDP socket it creates.
	var d net.Dialer
	return &Sender{port: port, log: log, dial: d.DialContext}
}

// Send broadcasts the magic packet for macAddr to broadcast (DefaultBroadcast
// when empty). Every failure is returned as a structured error; nothing is
// retried.
func (s *Sender) Send(ctx context.Context, macAddr, broadcast string) error {
	packet, err := BuildPacket(macAddr)
	if err != nil {
		s.log.Warn("wol: rejected %q: invalid MAC", macAddr)
		return err
	}

	if broadcast == "" {
		broadcast = DefaultBroadcast
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(broadcast, strconv.Itoa(s.port)))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport,
			"Cannot resolve broadcast address "+broadcast,
			"Check wake.broadcast in your config")
	}

	conn, err := s.dial(ctx, "udp4", addr.String())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "Cannot open UDP socket", "")
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "Cannot set write deadline on UDP socket", "")
	}

	n, err := conn.Write(packet)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "Failed to send magic packet", "")
	}
	if n != len(packet) {
		return errors.New(errors.ErrTransport,
			"Short write sending magic packet: "+strconv.Itoa(n)+" of "+strconv.Itoa(len(packet))+" bytes", "")
	}

	s.log.Debug("wol: magic packet for %s sent to %s (%d bytes)", mac.Display(macAddr), addr, n)
	return nil
}
