// Package rcon sends out-of-band admin commands to game servers over UDP.
package rcon

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	packetHeader = "\xff\xff\xff\xff"
	rconPrefix   = packetHeader + "rcon "
	printPrefix  = packetHeader + "print\n"
	dialTimeout  = 3 * time.Second
	maxResponse  = 65535
)

// Client sends RCON commands to game servers. It is stateless; every
// command opens its own short-lived UDP socket.
type Client struct{}

// NewClient creates a new RCON client
func NewClient() *Client {
	return &Client{}
}

// Command sends an RCON command to a server and returns the response text
func (c *Client) Command(address, password, command string) (string, error) {
	conn, err := net.DialTimeout("udp", address, dialTimeout)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	// Format: \xff\xff\xff\xffrcon <password> <command>
	request := fmt.Sprintf("%s%s %s", rconPrefix, password, command)
	if _, err := conn.Write([]byte(request)); err != nil {
		return "", fmt.Errorf("sending rcon command: %w", err)
	}

	// Read response (may come in multiple packets for long output)
	var response strings.Builder
	buf := make([]byte, maxResponse)

	for {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				break // No more data
			}
			if response.Len() > 0 {
				break // Got some data, treat error as end
			}
			return "", fmt.Errorf("reading response: %w", err)
		}

		data := string(buf[:n])
		if strings.HasPrefix(data, printPrefix) {
			response.WriteString(strings.TrimPrefix(data, printPrefix))
		}
	}

	return response.String(), nil
}
