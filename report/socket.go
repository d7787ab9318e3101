package report

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rubiojr/go-strawberrypi/station"
)

const DefaultSocketAddress = "127.0.0.1:8080"

// Socket streams readings as text lines to the display server:
//
//	climate: "21.5 40.0% 120"
//	gas:     "250.00 10.00" (alarms only)
//	failure: "ERROR"
//
// The connection is dialed on first use and again after a write error.
type Socket struct {
	Address string
	Timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewSocket(address string) *Socket {
	if address == "" {
		address = DefaultSocketAddress
	}
	d := &net.Dialer{}
	return &Socket{
		Address: address,
		Timeout: 5 * time.Second,
		dial:    d.DialContext,
	}
}

func (s *Socket) ReportClimate(ctx context.Context, m station.Measurement) error {
	return s.send(ctx, ClimateLine(m))
}

func (s *Socket) ReportGas(ctx context.Context, g station.GasSample) error {
	if !g.Alarm {
		return nil
	}
	return s.send(ctx, GasLine(g))
}

func (s *Socket) ReportFailure(ctx context.Context, f station.Failure) error {
	switch f.Stage {
	case station.StageClimate, station.StageLight:
		return s.send(ctx, "ERROR")
	}
	return nil
}

// Close closes the current connection, if any.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Socket) send(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := s.dial(ctx, "tcp", s.Address)
		if err != nil {
			return errors.Wrapf(err, "connect to %s", s.Address)
		}
		s.conn = conn
	}

	if s.Timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	}
	if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
		s.conn.Close()
		s.conn = nil
		return errors.Wrapf(err, "write to %s", s.Address)
	}

	return nil
}

// ClimateLine formats a measurement the way the display server parses it.
func ClimateLine(m station.Measurement) string {
	return fmt.Sprintf("%.1f %.1f%% %d", m.Celsius(), m.Percent(), m.Light)
}

// GasLine formats a gas sample as "CO LPG".
func GasLine(g station.GasSample) string {
	return fmt.Sprintf("%.2f %.2f", g.CO, g.LPG)
}
