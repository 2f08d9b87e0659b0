// Package player spawns the external video player and bridges its playback
// position into the library, so episodes resume where the viewer left off.
package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrChannelLost means the player's progress channel could not be reached.
// Early on that just means the player is still starting up; after playback
// it means the process went away.
var ErrChannelLost = errors.New("progress channel lost")

// IPC speaks mpv's JSON IPC protocol over a unix socket.
type IPC struct {
	socketPath string
	timeout    time.Duration
}

// NewIPC creates a client for an mpv IPC socket.
func NewIPC(socketPath string) *IPC {
	return &IPC{socketPath: socketPath, timeout: 500 * time.Millisecond}
}

// SocketPath returns a per-process socket path for mpv.
func SocketPath() string {
	return fmt.Sprintf("%s/seiri-mpv-%d.sock", os.TempDir(), os.Getpid())
}

// TimePos returns the current playback position in seconds.
func (c *IPC) TimePos() (float64, error) { return c.getProperty("time-pos") }

// Duration returns the total duration of the playing file in seconds.
func (c *IPC) Duration() (float64, error) { return c.getProperty("duration") }

type ipcCommand struct {
	Command []any `json:"command"`
}

type ipcResponse struct {
	Data  *float64 `json:"data"`
	Error string   `json:"error"`
}

func (c *IPC) getProperty(name string) (float64, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChannelLost, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	payload, err := json.Marshal(ipcCommand{Command: []any{"get_property", name}})
	if err != nil {
		return 0, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChannelLost, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChannelLost, err)
	}
	var resp ipcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChannelLost, err)
	}
	if resp.Error != "success" || resp.Data == nil {
		return 0, fmt.Errorf("querying %s: %s", name, resp.Error)
	}
	return *resp.Data, nil
}

// Cleanup removes the socket file once the session ends.
func (c *IPC) Cleanup() {
	os.Remove(c.socketPath)
}
