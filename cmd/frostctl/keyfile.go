package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// KeyFile holds one participant's key share. The share is the canonical
// binary encoding in hex, so every codec stores the same bytes.
type KeyFile struct {
	Ciphersuite    string `json:"ciphersuite" yaml:"ciphersuite" toml:"ciphersuite" bson:"ciphersuite" msgpack:"ciphersuite" cbor:"ciphersuite"`
	Identifier     string `json:"identifier" yaml:"identifier" toml:"identifier" bson:"identifier" msgpack:"identifier" cbor:"identifier"`
	KeyShare       string `json:"key_share" yaml:"key_share" toml:"key_share" bson:"key_share" msgpack:"key_share" cbor:"key_share"`
	GroupPublicKey string `json:"group_public_key" yaml:"group_public_key" toml:"group_public_key" bson:"group_public_key" msgpack:"group_public_key" cbor:"group_public_key"`
}

// PublicKeyFile holds the public key package of a group.
type PublicKeyFile struct {
	Ciphersuite    string `json:"ciphersuite" yaml:"ciphersuite" toml:"ciphersuite" bson:"ciphersuite" msgpack:"ciphersuite" cbor:"ciphersuite"`
	GroupPublicKey string `json:"group_public_key" yaml:"group_public_key" toml:"group_public_key" bson:"group_public_key" msgpack:"group_public_key" cbor:"group_public_key"`
	MinSigners     int    `json:"min_signers" yaml:"min_signers" toml:"min_signers" bson:"min_signers" msgpack:"min_signers" cbor:"min_signers"`
	Package        string `json:"package" yaml:"package" toml:"package" bson:"package" msgpack:"package" cbor:"package"`
	SolanaAddress  string `json:"solana_address,omitempty" yaml:"solana_address,omitempty" toml:"solana_address,omitempty" bson:"solana_address,omitempty" msgpack:"solana_address,omitempty" cbor:"solana_address,omitempty"`
}

func newKeyFile(ks *frost.KeyShare) (*KeyFile, error) {
	raw, err := ks.Bytes()
	if err != nil {
		return nil, err
	}
	return &KeyFile{
		Ciphersuite:    ks.Ciphersuite,
		Identifier:     ks.Identifier.String(),
		KeyShare:       hex.EncodeToString(raw),
		GroupPublicKey: hex.EncodeToString(ks.GroupPublicKey.Bytes()),
	}, nil
}

func (f *KeyFile) decode() (*frost.KeyShare, error) {
	raw, err := hex.DecodeString(f.KeyShare)
	if err != nil {
		return nil, errors.Wrap(err, "key share hex")
	}
	defer frost.ZeroizeBytes(raw)
	return frost.DecodeKeyShare(raw)
}

func newPublicKeyFile(pub *frost.PublicKeyPackage) (*PublicKeyFile, error) {
	raw, err := pub.Bytes()
	if err != nil {
		return nil, err
	}
	return &PublicKeyFile{
		Ciphersuite:    pub.Ciphersuite,
		GroupPublicKey: hex.EncodeToString(pub.GroupPublicKey.Bytes()),
		MinSigners:     pub.MinSigners,
		Package:        hex.EncodeToString(raw),
	}, nil
}

func (f *PublicKeyFile) decode() (*frost.PublicKeyPackage, error) {
	raw, err := hex.DecodeString(f.Package)
	if err != nil {
		return nil, errors.Wrap(err, "public key package hex")
	}
	return frost.DecodePublicKeyPackage(raw)
}

// codecFor picks the codec from the file extension, falling back to the
// configured one.
func codecFor(path, fallback string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "yml":
		return transport.CodecYAML
	case "mp":
		return transport.CodecMsgpack
	}
	for _, c := range transport.Codecs {
		if ext == c {
			return c
		}
	}
	return fallback
}

func writeFile(path, codec string, v any) error {
	s, err := transport.NewSerializer(codec)
	if err != nil {
		return err
	}
	data, err := s.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func readFile(path, codec string, v any) error {
	s, err := transport.NewSerializer(codecFor(path, codec))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := s.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

func loadKeyShare(path, codec string) (*frost.KeyShare, error) {
	var f KeyFile
	if err := readFile(path, codec, &f); err != nil {
		return nil, err
	}
	ks, err := f.decode()
	if err != nil {
		return nil, errors.Wrapf(err, "key share in %s", path)
	}
	return ks, nil
}

func loadPublicKeys(path, codec string) (*frost.PublicKeyPackage, error) {
	var f PublicKeyFile
	if err := readFile(path, codec, &f); err != nil {
		return nil, err
	}
	pub, err := f.decode()
	if err != nil {
		return nil, errors.Wrapf(err, "public keys in %s", path)
	}
	return pub, nil
}

// readHex decodes a hex argument, tolerating surrounding whitespace and a
// 0x prefix.
func readHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}
