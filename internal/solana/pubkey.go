package solana

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const PubkeyLength = 32

var ErrInvalidPubkey = errors.New("invalid pubkey")

// Pubkey is a 32-byte ed25519 account address.
type Pubkey [PubkeyLength]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// ParsePubkey decodes a base58 address and checks its length.
func ParsePubkey(s string) (Pubkey, error) {
	if s == "" {
		return Pubkey{}, fmt.Errorf("%w: empty address", ErrInvalidPubkey)
	}
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: decode %q: %v", ErrInvalidPubkey, s, err)
	}
	if len(data) != PubkeyLength {
		return Pubkey{}, fmt.Errorf("%w: got %d bytes, want %d, input=%q", ErrInvalidPubkey, len(data), PubkeyLength, s)
	}
	var p Pubkey
	copy(p[:], data)
	return p, nil
}

// MustPubkey is ParsePubkey for trusted constants.
func MustPubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PubkeyFromBytes copies the first 32 bytes of b.
func PubkeyFromBytes(b []byte) Pubkey {
	var p Pubkey
	copy(p[:], b)
	return p
}

// AddressParser validates wallet addresses as base58 pubkeys.
type AddressParser struct{}

func (AddressParser) ParseAddress(address string) (Pubkey, error) {
	return ParsePubkey(address)
}
