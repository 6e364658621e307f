package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/matheus3301/imsg/internal/api"
)

// ErrNotRunning means no imsg process is serving the control socket.
var ErrNotRunning = errors.New("imsg is not running")

// DefaultTimeout bounds one control call.
const DefaultTimeout = 10 * time.Second

// Client wraps the gRPC connection to a running imsg.
type Client struct {
	conn    *grpc.ClientConn
	Control *api.ControlClient
}

// New dials the control socket. It fails fast with ErrNotRunning when the
// socket file does not exist.
func New(socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w (no socket at %s)", ErrNotRunning, socketPath)
	}
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial imsg: %w", err)
	}
	return &Client{conn: conn, Control: api.NewControlClient(conn)}, nil
}

// Context returns a context bounded by DefaultTimeout.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
