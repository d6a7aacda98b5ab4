package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/iov-one/fedescrow/crypto/bech32"
	"github.com/iov-one/fedescrow/errors"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = schnorr.PubKeyBytesLen
	SignatureSize  = schnorr.SignatureSize
	DigestSize     = sha256.Size

	// PublicKeyHRP is the human readable part of a bech32 encoded public
	// key.
	PublicKeyHRP = "fpub"
)

// PrivateKey signs instructions on behalf of a party.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// GenPrivateKey creates a new random key.
func GenPrivateKey() (*PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrHuman, "cannot generate key: %s", err)
	}
	return &PrivateKey{key: k}, nil
}

// PrivateKeyFromBytes loads a serialized private key.
func PrivateKeyFromBytes(raw []byte) (*PrivateKey, error) {
	if len(raw) != PrivateKeySize {
		return nil, errors.Wrapf(errors.ErrInput, "private key must be %d bytes", PrivateKeySize)
	}
	if bytes.Equal(raw, make([]byte, PrivateKeySize)) {
		return nil, errors.Wrap(errors.ErrInput, "zero private key")
	}
	k, _ := btcec.PrivKeyFromBytes(raw)
	return &PrivateKey{key: k}, nil
}

// PrivateKeyFromSeed deterministically derives a key from any seed. Handy
// for tests and development networks, never for real funds.
func PrivateKeyFromSeed(seed []byte) *PrivateKey {
	h := sha256.Sum256(seed)
	k, _ := btcec.PrivKeyFromBytes(h[:])
	return &PrivateKey{key: k}
}

// Bytes returns the 32 byte serialized secret.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// PublicKey returns the x-only public key.
func (k *PrivateKey) PublicKey() PublicKey {
	return PublicKey(schnorr.SerializePubKey(k.key.PubKey()))
}

// Sign produces a Schnorr signature of a 32 byte digest.
func (k *PrivateKey) Sign(digest []byte) (Signature, error) {
	if len(digest) != DigestSize {
		return nil, errors.Wrapf(errors.ErrInput, "digest must be %d bytes", DigestSize)
	}
	sig, err := schnorr.Sign(k.key, digest)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrHuman, "cannot sign: %s", err)
	}
	return Signature(sig.Serialize()), nil
}

// PublicKey is a 32 byte x-only secp256k1 key.
type PublicKey []byte

// ParsePublicKey accepts either the bech32 or the hex representation.
func ParsePublicKey(s string) (PublicKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), PublicKeyHRP+"1") {
		hrp, raw, err := bech32.Decode(s)
		if err != nil {
			return nil, err
		}
		if hrp != PublicKeyHRP {
			return nil, errors.Wrapf(errors.ErrInput, "unexpected prefix %q", hrp)
		}
		pk := PublicKey(raw)
		return pk, pk.Validate()
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, "public key is neither bech32 nor hex")
	}
	pk := PublicKey(raw)
	return pk, pk.Validate()
}

// Validate ensures this is a point on the curve.
func (p PublicKey) Validate() error {
	if len(p) == 0 {
		return errors.Wrap(errors.ErrEmpty, "public key")
	}
	if len(p) != PublicKeySize {
		return errors.Wrapf(errors.ErrInput, "public key must be %d bytes", PublicKeySize)
	}
	if _, err := schnorr.ParsePubKey(p); err != nil {
		return errors.Wrapf(errors.ErrInput, "invalid public key: %s", err)
	}
	return nil
}

// Verify returns true only if sig is a valid signature of the digest made
// by the owner of this key. Malformed input never verifies.
func (p PublicKey) Verify(digest []byte, sig Signature) bool {
	if len(digest) != DigestSize || len(sig) != SignatureSize {
		return false
	}
	pub, err := schnorr.ParsePubKey(p)
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest, pub)
}

func (p PublicKey) Equals(o PublicKey) bool {
	return bytes.Equal(p, o)
}

// String returns the bech32 representation.
func (p PublicKey) String() string {
	if len(p) == 0 {
		return ""
	}
	s, err := bech32.Encode(PublicKeyHRP, p)
	if err != nil {
		return hex.EncodeToString(p)
	}
	return s
}

func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PublicKey) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(errors.ErrInput, "public key must be a string")
	}
	if s == "" {
		*p = nil
		return nil
	}
	pk, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// Signature is a 64 byte BIP-340 signature.
type Signature []byte

// ParseSignature decodes a hex encoded signature.
func ParseSignature(s string) (Signature, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, "signature must be hex encoded")
	}
	if len(raw) != SignatureSize {
		return nil, errors.Wrapf(errors.ErrInput, "signature must be %d bytes", SignatureSize)
	}
	return Signature(raw), nil
}

func (s Signature) String() string {
	return hex.EncodeToString(s)
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(raw []byte) error {
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return errors.Wrap(errors.ErrInput, "signature must be a string")
	}
	sig, err := ParseSignature(str)
	if err != nil {
		return err
	}
	*s = sig
	return nil
}
