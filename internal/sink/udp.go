package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"gap-navigator/internal/pipeline"
)

// Command is the datagram sent for every decision.
type Command struct {
	RunID    string `json:"run_id"`
	Seq      uint64 `json:"seq"`
	Decision string `json:"decision"`
	DX       int    `json:"dx_px"`
	DY       int    `json:"dy_px"`
	Passable bool   `json:"passable"`
}

// UDP sends decisions as JSON datagrams to a flight controller bridge.
type UDP struct {
	conn *net.UDPConn
}

// NewUDP dials addr. An empty address yields a sink that drops everything.
func NewUDP(addr string) (*UDP, error) {
	if addr == "" {
		return &UDP{}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &UDP{conn: conn}, nil
}

func (s *UDP) Emit(_ context.Context, o pipeline.Outcome) error {
	if s == nil || s.conn == nil {
		return nil
	}
	payload, err := json.Marshal(Command{
		RunID:    o.RunID,
		Seq:      o.Seq,
		Decision: o.Decision.String(),
		DX:       o.DX,
		DY:       o.DY,
		Passable: o.Passable,
	})
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send decision: %w", err)
	}
	return nil
}

// Close releases the socket.
func (s *UDP) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
