package omapi

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcode_String(t *testing.T) {
	assert.Equal(t, "OPEN", OpOpen.String())
	assert.Equal(t, "UPDATE", OpUpdate.String())
	assert.Equal(t, "UNKNOWN", OpUnknown.String())
}

func TestMessage_SignedRoundTrip(t *testing.T) {
	m := NewOpenMessage()
	m.signed = true
	m.AuthID = 7
	m.Handle = 3
	m.TransactionID = 99
	m.ResponseID = 1
	m.Message["type"] = []byte("authenticator")
	m.Object["name"] = []byte("fleetd")
	m.Signature = []byte{0xde, 0xad, 0xbe, 0xef}

	b, err := m.MarshalBinary()
	require.NoError(t, err)

	out := NewEmptyMessage()
	require.NoError(t, out.UnmarshalBinary(b))

	assert.Equal(t, m.AuthID, out.AuthID)
	assert.Equal(t, m.Operation, out.Operation)
	assert.Equal(t, m.Handle, out.Handle)
	assert.Equal(t, m.TransactionID, out.TransactionID)
	assert.Equal(t, m.ResponseID, out.ResponseID)
	assert.Equal(t, []byte("authenticator"), out.Message["type"])
	assert.Equal(t, []byte("fleetd"), out.Object["name"])
	assert.Equal(t, m.Signature, out.Signature)
}

func TestMessage_String(t *testing.T) {
	m := NewOpenMessage()
	m.TransactionID = 5
	m.ResponseID = 6
	assert.Contains(t, m.String(), "OPEN")
	assert.Contains(t, m.String(), "TID: 5")
}

func TestNullAuthenticator_ObjectIsEmptyAndAuthIDRoundTrips(t *testing.T) {
	auth := &NullAuthenticator{}
	assert.Empty(t, auth.Object())
	auth.SetAuthID(42)
	assert.Equal(t, uint32(42), auth.AuthID())
}

func TestNewHMACMD5Authenticator_RejectsNonBase64Secret(t *testing.T) {
	_, err := NewHMACMD5Authenticator("key0", "not-base64!!")
	assert.Error(t, err)
}

func TestNewHMACMD5Authenticator_PopulatesAlgorithmObject(t *testing.T) {
	auth, err := NewHMACMD5Authenticator("key0", "c2VjcmV0")
	require.NoError(t, err)
	assert.Equal(t, []byte("hmac-md5.SIG-ALG.REG.INT."), auth.Object()["algorithm"])
	assert.Equal(t, []byte("key0"), auth.Object()["name"])
}

// fakeDHCPD emulates just enough of dhcpd's omapi startup sequence for Probe
// to succeed: echo the 8-byte version/headersize handshake, then reply with
// an UPDATE message carrying a nonzero handle.
func fakeDHCPD(t *testing.T, ln net.Listener, acceptHandle uint32) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	req := make([]byte, 8)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	if _, err := conn.Write(req); err != nil {
		return
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return
	}

	reply := NewEmptyMessage()
	reply.Operation = OpUpdate
	reply.Handle = acceptHandle
	reply.TransactionID = 1
	reply.signed = true
	out, err := reply.MarshalBinary()
	if err != nil {
		return
	}
	_, _ = conn.Write(out)
}

func TestProbe_SucceedsAgainstAcceptingServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeDHCPD(t, ln, 9)

	err = Probe(ln.Addr().String(), &NullAuthenticator{})
	assert.NoError(t, err)
}

func TestProbe_FailsOnProtocolMismatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req := make([]byte, 8)
		_, _ = io.ReadFull(conn, req)
		bad := make([]byte, 8)
		binary.BigEndian.PutUint32(bad[0:4], 1)
		_, _ = conn.Write(bad)
	}()

	err = Probe(ln.Addr().String(), &NullAuthenticator{})
	assert.ErrorContains(t, err, "protocol mismatch")
}

func TestProbe_FailsWhenHandleIsZero(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeDHCPD(t, ln, 0)

	err = Probe(ln.Addr().String(), &NullAuthenticator{})
	assert.ErrorContains(t, err, "authentication rejected")
}
