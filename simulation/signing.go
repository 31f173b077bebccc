package simulation

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// RunSigning produces a signature on message with the given signers. The
// first signer also acts as coordinator: it collects commitments, sends
// the signing package back to every signer, then verifies and aggregates
// the returned shares.
func (n *Network) RunSigning(ctx context.Context, sessionID string, signers []frost.Identifier, keyShares map[frost.Identifier]*frost.KeyShare, pub *frost.PublicKeyPackage, message []byte) (*frost.Signature, error) {
	if len(signers) == 0 {
		return nil, frost.ErrInsufficientSigners.WithDetails("no signers")
	}
	for _, id := range signers {
		if _, ok := keyShares[id]; !ok {
			return nil, errors.Wrapf(frost.ErrUnknownParticipant, "no key share for %s", id)
		}
		if _, ok := n.endpoints[id]; !ok {
			return nil, errors.Wrapf(frost.ErrUnknownParticipant, "no endpoint for %s", id)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	coordinator := signers[0]
	logger := n.logger.With().Str("session_id", sessionID).Stringer("coordinator", coordinator).Logger()
	logger.Info().Int("signers", len(signers)).Msg("starting signing")

	var (
		mu  sync.Mutex
		sig *frost.Signature
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range signers {
		id := id
		g.Go(func() error {
			if id == coordinator {
				s, err := n.coordinate(gctx, sessionID, signers, keyShares[id], pub, message)
				if err != nil {
					return errors.Wrap(err, "coordinator")
				}
				mu.Lock()
				sig = s
				mu.Unlock()
				return nil
			}
			if err := n.sign(gctx, sessionID, coordinator, keyShares[id], message); err != nil {
				return errors.Wrapf(err, "signer %s", id)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("signing failed")
		return nil, err
	}
	logger.Info().Msg("signature aggregated")
	return sig, nil
}

// sign is one non-coordinating signer: commit, wait for the package, sign.
func (n *Network) sign(ctx context.Context, sessionID string, coordinator frost.Identifier, keyShare *frost.KeyShare, message []byte) error {
	ep := n.endpoints[keyShare.Identifier]
	nonces, err := frost.NewSigningNonces(n.cs, keyShare, n.rand)
	if err != nil {
		return err
	}
	defer nonces.Zeroize()

	if err := ep.SendTo(ctx, sessionID, coordinator, transport.MsgTypeSigningCommitment, nonces.Commitment().Bytes()); err != nil {
		return err
	}

	env, sender, err := ep.Receive(ctx, sessionID, transport.MsgTypeSigningPackage)
	if err != nil {
		return err
	}
	if sender != coordinator {
		return errors.Errorf("signing package from %s, expected coordinator %s", sender, coordinator)
	}
	pkg, err := decodeSigningPackage(coordinator, env)
	if err != nil {
		return err
	}
	if !bytes.Equal(pkg.Message, message) {
		return errors.New("coordinator asked to sign a different message")
	}

	share, err := frost.Sign(n.cs, pkg, nonces, keyShare)
	if err != nil {
		return err
	}
	return ep.SendTo(ctx, sessionID, coordinator, transport.MsgTypeSignatureShare, share.Bytes())
}

func (n *Network) coordinate(ctx context.Context, sessionID string, signers []frost.Identifier, keyShare *frost.KeyShare, pub *frost.PublicKeyPackage, message []byte) (*frost.Signature, error) {
	ep := n.endpoints[keyShare.Identifier]
	session, err := frost.NewSigningSession(n.cs, pub, message,
		frost.WithSigningAudit(n.audit),
		frost.WithSigningSessionID(sessionID))
	if err != nil {
		return nil, err
	}
	defer session.Abort()

	nonces, err := frost.NewSigningNonces(n.cs, keyShare, n.rand)
	if err != nil {
		return nil, err
	}
	defer nonces.Zeroize()

	envs, err := ep.Collect(ctx, sessionID, transport.MsgTypeSigningCommitment, signers)
	if err != nil {
		return nil, err
	}
	commitments := []*frost.SigningCommitment{nonces.Commitment()}
	for sender, env := range envs {
		c, err := n.decodeCommitment(sender, env)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}

	pkg, err := session.Commit(commitments)
	if err != nil {
		return nil, err
	}
	payload, err := pkg.Bytes()
	if err != nil {
		return nil, err
	}
	for _, id := range signers {
		if id == keyShare.Identifier {
			continue
		}
		if err := ep.SendTo(ctx, sessionID, id, transport.MsgTypeSigningPackage, payload); err != nil {
			return nil, err
		}
	}

	own, err := session.Sign(nonces, keyShare)
	if err != nil {
		return nil, err
	}
	if err := session.AddShare(own); err != nil {
		return nil, err
	}

	envs, err = ep.Collect(ctx, sessionID, transport.MsgTypeSignatureShare, signers)
	if err != nil {
		return nil, err
	}
	for sender, env := range envs {
		share, err := n.decodeSignatureShare(sender, env)
		if err != nil {
			return nil, err
		}
		if err := session.AddShare(share); err != nil {
			return nil, err
		}
	}
	return session.Aggregate()
}

// QuorumSigner signs through a fixed quorum of the network. Each call runs
// a fresh signing session with fresh nonces.
type QuorumSigner struct {
	network   *Network
	signers   []frost.Identifier
	keyShares map[frost.Identifier]*frost.KeyShare
	pub       *frost.PublicKeyPackage
}

// NewQuorumSigner binds signers of a completed key generation. At least
// MinSigners signers are required.
func (n *Network) NewQuorumSigner(result *DKGResult, signers []frost.Identifier) (*QuorumSigner, error) {
	if result == nil || result.PublicKeys == nil {
		return nil, errors.New("missing key generation result")
	}
	if len(signers) < result.PublicKeys.MinSigners {
		return nil, frost.ErrInsufficientSigners.WithDetails("%d signers, need %d", len(signers), result.PublicKeys.MinSigners)
	}
	return &QuorumSigner{
		network:   n,
		signers:   append([]frost.Identifier(nil), signers...),
		keyShares: result.KeyShares,
		pub:       result.PublicKeys,
	}, nil
}

// Sign runs one signing session over the network
func (q *QuorumSigner) Sign(ctx context.Context, message []byte) (*frost.Signature, error) {
	return q.network.RunSigning(ctx, uuid.NewString(), q.signers, q.keyShares, q.pub, message)
}

// PublicKeys returns the public key package the signatures verify under
func (q *QuorumSigner) PublicKeys() *frost.PublicKeyPackage {
	return q.pub
}
