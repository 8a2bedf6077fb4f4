package omapi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	protocolVersion uint32 = 100
	headerSize      uint32 = 24
)

// Client performs the OMAPI startup handshake against a running dhcpd and
// nothing else — §4.9 only needs a liveness/authentication probe, not the
// host-object CRUD the full protocol supports.
type Client struct {
	conn net.Conn
}

// Dial connects to addr (host:port, dhcpd's omapi-port) and performs the
// startup exchange: protocol version + header size, then a signed
// "authenticator" open message. A successful, non-zero AuthID handle back
// confirms the daemon is alive and accepted the authenticator object; no
// message is signed with the shared secret, so a secret mismatch is not
// detected here.
func Dial(addr string, auth Authenticator) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn}
	if err := c.handshake(auth); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(auth Authenticator) error {
	req := make([]byte, 8)
	binary.BigEndian.PutUint32(req[0:4], protocolVersion)
	binary.BigEndian.PutUint32(req[4:8], headerSize)
	if _, err := c.conn.Write(req); err != nil {
		return err
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(c.conn, resp); err != nil {
		return err
	}
	if !bytes.Equal(req, resp) {
		return fmt.Errorf("omapi: protocol mismatch")
	}

	msg := NewOpenMessage()
	msg.Message["type"] = []byte("authenticator")
	msg.Object = auth.Object()
	msg.signed = true

	out, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(out); err != nil {
		return err
	}

	buf := make([]byte, 2048)
	n, err := c.conn.Read(buf)
	if err != nil {
		return err
	}
	ack := NewEmptyMessage()
	if err := ack.UnmarshalBinary(buf[:n]); err != nil {
		return err
	}
	if ack.Operation != OpUpdate || ack.Handle == 0 {
		return fmt.Errorf("omapi: authentication rejected")
	}
	auth.SetAuthID(ack.Handle)
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Probe dials addr, performs the handshake, and closes the connection; a
// nil return is dhcpd's equivalent of §4.9's `status` success case.
func Probe(addr string, auth Authenticator) error {
	c, err := Dial(addr, auth)
	if err != nil {
		return err
	}
	return c.Close()
}
