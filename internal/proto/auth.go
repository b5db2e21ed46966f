package proto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// ComputeAuthToken computes the challenge-response token:
// SHA-256(user || 0x00 || password || 0x00 || salt), exactly as
// suscan_analyzer_server_compute_auth_token does.
func ComputeAuthToken(user, password string, salt [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write([]byte{0})
	h.Write(salt[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewServerHello builds a ServerHello with a freshly generated salt.
// spec.md §9 flags the original's rand()-seeded salt as a weakness
// that "an implementer should upgrade ... to a cryptographically
// secure RNG"; this always uses crypto/rand, so any Go peer built on
// this function generates salts the strengthened way. The end-to-end
// test double peer does not call it: it sends a fixed salt so its
// expected auth token is reproducible.
func NewServerHello(serverName string, protocolMajor, protocolMinor uint8) (wire.ServerHello, error) {
	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return wire.ServerHello{}, fmt.Errorf("proto: generating salt: %w", err)
	}
	return wire.ServerHello{
		ServerName:     serverName,
		ProtocolMajor:  protocolMajor,
		ProtocolMinor:  protocolMinor,
		AuthMode:       wire.AuthModeUserPassword,
		EncryptionType: wire.EncryptionNone,
		Salt:           salt,
	}, nil
}
