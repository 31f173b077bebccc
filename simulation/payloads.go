package simulation

import (
	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// The helpers below turn an authenticated envelope into a protocol value.
// The envelope signature already names the sender, so a payload that does
// not open or decode is that sender's fault and is reported with the
// matching protocol error and the sender as culprit.

func (n *Network) decodeRound1(sender frost.Identifier, env *transport.Envelope) (*frost.Round1Package, error) {
	pkg, err := frost.DecodeRound1Package(n.cs, env.Payload)
	if err != nil {
		return nil, frost.ErrInvalidProof.WithCulprit(sender).WithCause(err).
			WithDetails("undecodable round 1 package")
	}
	if pkg.Sender != sender {
		return nil, frost.ErrInvalidProof.WithCulprit(sender).WithDetails("package claims sender %s", pkg.Sender)
	}
	return pkg, nil
}

func (n *Network) openSecretShare(ep *transport.Endpoint, sender frost.Identifier, env *transport.Envelope) (*frost.SecretShare, error) {
	plaintext, err := ep.OpenSealed(env)
	if err != nil {
		return nil, frost.ErrInvalidShare.WithCulprit(sender).WithCause(err).
			WithDetails("sealed share does not open")
	}
	share, err := frost.DecodeSecretShare(n.cs, plaintext)
	frost.ZeroizeBytes(plaintext)
	if err != nil {
		return nil, frost.ErrInvalidShare.WithCulprit(sender).WithCause(err).
			WithDetails("undecodable share")
	}
	if share.Sender != sender || share.Recipient != ep.ID() {
		share.Zeroize()
		return nil, frost.ErrInvalidShare.WithCulprit(sender).
			WithDetails("share addressed %s to %s", share.Sender, share.Recipient)
	}
	return share, nil
}

func (n *Network) decodeCommitment(sender frost.Identifier, env *transport.Envelope) (*frost.SigningCommitment, error) {
	c, err := frost.DecodeSigningCommitment(n.cs, env.Payload)
	if err != nil {
		return nil, frost.ErrInvalidCommitment.WithCulprit(sender).WithCause(err).
			WithDetails("undecodable signing commitment")
	}
	if c.Identifier != sender {
		return nil, frost.ErrInvalidCommitment.WithCulprit(sender).WithDetails("commitment claims signer %s", c.Identifier)
	}
	return c, nil
}

func (n *Network) decodeSignatureShare(sender frost.Identifier, env *transport.Envelope) (*frost.SignatureShare, error) {
	share, err := frost.DecodeSignatureShare(n.cs, env.Payload)
	if err != nil {
		return nil, frost.ErrInvalidSignatureShare.WithCulprit(sender).WithCause(err).
			WithDetails("undecodable signature share")
	}
	if share.Identifier != sender {
		return nil, frost.ErrInvalidSignatureShare.WithCulprit(sender).WithDetails("share claims signer %s", share.Identifier)
	}
	return share, nil
}

func decodeSigningPackage(coordinator frost.Identifier, env *transport.Envelope) (*frost.SigningPackage, error) {
	pkg, err := frost.DecodeSigningPackage(env.Payload)
	if err != nil {
		return nil, frost.ErrDecoding.WithCulprit(coordinator).WithCause(err).
			WithDetails("undecodable signing package")
	}
	return pkg, nil
}
