package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionSuffix is the top-level label of onion services.
	OnionSuffix = ".onion"

	// OnionV3Version is the version byte embedded in v3 addresses.
	OnionV3Version = 0x03

	// v3 address payload: ed25519 public key, checksum, version.
	v3PubKeyLen  = 32
	v3PayloadLen = 35
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is the constant prepended to v3 checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (optionally with a port) is under .onion.
// Subdomains of a service ("www.<addr>.onion") count as onion hosts.
func IsOnionHost(host string) bool {
	host = strings.ToLower(stripPort(host))
	return strings.HasSuffix(strings.TrimSuffix(host, "."), OnionSuffix)
}

// ValidateOnionHost checks the service address of an onion host.
// Subdomains are ignored; only the last two labels are validated.
func ValidateOnionHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(stripPort(host)), ".")
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		host = strings.Join(labels[len(labels)-2:], ".")
	}

	if IsValidV3Address(host) {
		return nil
	}
	if IsV2Address(host) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}

// IsValidV3Address checks the format, version and checksum of a v3 onion
// address such as "<56 base32 chars>.onion". The check is case-insensitive.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != v3PayloadLen {
		return false
	}

	pubkey := decoded[:v3PubKeyLen]
	checksum := decoded[v3PubKeyLen : v3PubKeyLen+2]
	version := decoded[v3PayloadLen-1]
	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// IsV2Address reports whether address has the retired 16 character v2 form.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ComputeV3Address builds the v3 onion address of an ed25519 public key.
func ComputeV3Address(pubkey []byte) (string, error) {
	if len(pubkey) != v3PubKeyLen {
		return "", ErrInvalidOnionAddress
	}

	payload := make([]byte, 0, v3PayloadLen)
	payload = append(payload, pubkey...)
	payload = append(payload, computeV3Checksum(pubkey, OnionV3Version)...)
	payload = append(payload, OnionV3Version)

	return strings.ToLower(base32.StdEncoding.EncodeToString(payload)) + OnionSuffix, nil
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
