package omapi

import (
	"encoding/base64"
)

// Authenticator supplies the signed-open-message object ISC dhcpd expects
// during the startup handshake. fleetd never signs a follow-up message (it
// only probes liveness), so the interface has no signing method.
type Authenticator interface {
	Object() map[string][]byte
	AuthID() uint32
	SetAuthID(uint32)
}

// NullAuthenticator authenticates as the omapi "null" key scheme: it is
// accepted by dhcpd when no `omapi-key` statement is configured, which is
// the common case for fleetd's liveness probe when network.omapi_secret is
// empty.
type NullAuthenticator struct {
	authID uint32
}

func (n *NullAuthenticator) Object() map[string][]byte  { return map[string][]byte{} }
func (n *NullAuthenticator) AuthID() uint32              { return n.authID }
func (n *NullAuthenticator) SetAuthID(id uint32)         { n.authID = id }

// HMACMD5Authenticator supplies the `omapi-key` HMAC-MD5 authenticator
// object (algorithm and key name) used when network.omapi_secret is
// configured. The secret is only checked to be valid base64; it is not
// kept, and no message is signed with it.
type HMACMD5Authenticator struct {
	object map[string][]byte
	authID uint32
}

func NewHMACMD5Authenticator(name, secret string) (*HMACMD5Authenticator, error) {
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return nil, err
	}
	return &HMACMD5Authenticator{
		object: map[string][]byte{
			"algorithm": []byte("hmac-md5.SIG-ALG.REG.INT."),
			"name":      []byte(name),
		},
	}, nil
}

func (h *HMACMD5Authenticator) Object() map[string][]byte { return h.object }
func (h *HMACMD5Authenticator) AuthID() uint32              { return h.authID }
func (h *HMACMD5Authenticator) SetAuthID(id uint32)         { h.authID = id }
