package reticulum

import (
	"fmt"
	"net/url"

	"github.com/wfunc/gamebot/network"
)

// Client opens Phoenix channel sockets against one Reticulum host.
// Each hub gets its own socket so a dead room cannot take down the rest.
type Client struct {
	hostname string
}

func NewClient(hostname string) *Client {
	return &Client{hostname: hostname}
}

func (c *Client) Hostname() string { return c.hostname }

// ChannelForHub dials the host's socket endpoint and prepares a channel
// for the given hub. The caller still has to Join it.
func (c *Client) ChannelForHub(hubID, displayName string) (*Channel, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     c.hostname,
		Path:     "/socket/websocket",
		RawQuery: "vsn=2.0.0",
	}
	conn, err := network.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.hostname, err)
	}
	return newChannel(conn, hubID, displayName), nil
}
