package adapters

import (
	"context"

	solana "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/moatus/frost"
)

// ChainType represents different blockchain types
type ChainType string

// ChainTypeSolana represents the Solana blockchain
const ChainTypeSolana ChainType = "solana"

// ThresholdSigner produces a FROST signature over message under the group
// key of the adapter, typically by driving a signing session among a
// quorum.
type ThresholdSigner interface {
	Sign(ctx context.Context, message []byte) (*frost.Signature, error)
}

// SolanaAdapter exposes an Ed25519 FROST group key as a Solana account.
// Solana verifies plain RFC 8032 signatures, so group signatures need no
// conversion beyond re-typing.
type SolanaAdapter struct {
	cs      frost.Ciphersuite
	pub     *frost.PublicKeyPackage
	address solana.PublicKey
}

// NewSolanaAdapter creates a new Solana adapter for an Ed25519 group.
func NewSolanaAdapter(pub *frost.PublicKeyPackage) (*SolanaAdapter, error) {
	if pub == nil || pub.GroupPublicKey == nil {
		return nil, errors.New("public key package is required")
	}
	if pub.Ciphersuite != frost.CiphersuiteEd25519 {
		return nil, errors.Errorf("solana requires %s, group uses %s", frost.CiphersuiteEd25519, pub.Ciphersuite)
	}
	cs, err := frost.CiphersuiteByID(pub.Ciphersuite)
	if err != nil {
		return nil, err
	}
	return &SolanaAdapter{
		cs:      cs,
		pub:     pub,
		address: solana.PublicKeyFromBytes(pub.GroupPublicKey.Bytes()),
	}, nil
}

// GetChainType returns the chain type for this adapter
func (sa *SolanaAdapter) GetChainType() ChainType {
	return ChainTypeSolana
}

// Address returns the group key as a Solana account address.
func (sa *SolanaAdapter) Address() solana.PublicKey {
	return sa.address
}

// ToSolanaSignature re-types a 64-byte R || S group signature.
func (sa *SolanaAdapter) ToSolanaSignature(sig *frost.Signature) (solana.Signature, error) {
	if sig == nil || sig.R == nil || sig.S == nil {
		return solana.Signature{}, errors.New("signature is incomplete")
	}
	raw := sig.Bytes()
	if len(raw) != solana.SignatureLength {
		return solana.Signature{}, errors.Errorf("signature is %d bytes, want %d", len(raw), solana.SignatureLength)
	}
	return solana.SignatureFromBytes(raw), nil
}

// FromSolanaSignature decodes a Solana signature into a group signature.
func (sa *SolanaAdapter) FromSolanaSignature(sig solana.Signature) (*frost.Signature, error) {
	decoded, err := frost.DecodeSignature(sa.cs, sig[:])
	if err != nil {
		return nil, errors.Wrap(err, "decode solana signature")
	}
	return decoded, nil
}

// VerifySignature checks sig with Solana's own verifier.
func (sa *SolanaAdapter) VerifySignature(message []byte, sig solana.Signature) error {
	if !sig.Verify(sa.address, message) {
		return errors.Wrapf(frost.ErrInvalidSignature, "solana verification failed for %s", sa.address)
	}
	return nil
}

// SignMessage asks signer for a group signature and checks it against the
// Solana address before returning it.
func (sa *SolanaAdapter) SignMessage(ctx context.Context, signer ThresholdSigner, message []byte) (solana.Signature, error) {
	if len(message) == 0 {
		return solana.Signature{}, errors.New("message cannot be empty")
	}
	sig, err := signer.Sign(ctx, message)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "threshold signing")
	}
	out, err := sa.ToSolanaSignature(sig)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := sa.VerifySignature(message, out); err != nil {
		return solana.Signature{}, err
	}
	return out, nil
}

// SignTransaction signs tx's message with the group key and places the
// signature in the slot of the group address. The address must be one of
// the transaction's required signers.
func (sa *SolanaAdapter) SignTransaction(ctx context.Context, signer ThresholdSigner, tx *solana.Transaction) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	slot, err := sa.signerSlot(tx)
	if err != nil {
		return err
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "serialize transaction message")
	}
	sig, err := sa.SignMessage(ctx, signer, message)
	if err != nil {
		return err
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		signatures := make([]solana.Signature, required)
		copy(signatures, tx.Signatures)
		tx.Signatures = signatures
	}
	tx.Signatures[slot] = sig
	return nil
}

func (sa *SolanaAdapter) signerSlot(tx *solana.Transaction) (int, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i, key := range tx.Message.AccountKeys {
		if i >= required {
			break
		}
		if key.Equals(sa.address) {
			return i, nil
		}
	}
	return 0, errors.Errorf("%s is not a required signer of the transaction", sa.address)
}

// ParseAddress decodes a base58 Solana address and checks that it names
// this group.
func (sa *SolanaAdapter) ParseAddress(address string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "parse solana address")
	}
	if !key.Equals(sa.address) {
		return solana.PublicKey{}, errors.Errorf("address %s does not belong to this group", address)
	}
	return key, nil
}
