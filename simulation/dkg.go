package simulation

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// DKGResult is the outcome of a successful key generation
type DKGResult struct {
	KeyShares  map[frost.Identifier]*frost.KeyShare
	PublicKeys *frost.PublicKeyPackage
}

// RunDKG runs the three-round key generation with every participant of the
// network in its own goroutine. Round-1 packages are broadcast and round-2
// shares are sealed to their recipients. The first failure cancels every
// other participant, and each cancelled session erases its secrets.
func (n *Network) RunDKG(ctx context.Context, sessionID string, threshold int) (*DKGResult, error) {
	logger := n.logger.With().Str("session_id", sessionID).Int("threshold", threshold).Logger()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info().Int("participants", len(n.ids)).Msg("starting key generation")

	var mu sync.Mutex
	result := &DKGResult{KeyShares: make(map[frost.Identifier]*frost.KeyShare, len(n.ids))}
	packages := make(map[frost.Identifier]*frost.PublicKeyPackage, len(n.ids))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range n.ids {
		id := id
		g.Go(func() error {
			keyShare, pub, err := n.runKeygenParticipant(gctx, sessionID, id, threshold)
			if err != nil {
				return errors.Wrapf(err, "participant %s", id)
			}
			mu.Lock()
			result.KeyShares[id] = keyShare
			packages[id] = pub
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("key generation failed")
		return nil, err
	}

	for id, pub := range packages {
		if result.PublicKeys == nil {
			result.PublicKeys = pub
			continue
		}
		if !pub.GroupPublicKey.Equal(result.PublicKeys.GroupPublicKey) {
			return nil, errors.Errorf("participant %s derived a different group key", id)
		}
	}
	logger.Info().Hex("group_public_key", result.PublicKeys.GroupPublicKey.Bytes()).Msg("key generation complete")
	return result, nil
}

func (n *Network) runKeygenParticipant(ctx context.Context, sessionID string, self frost.Identifier, threshold int) (*frost.KeyShare, *frost.PublicKeyPackage, error) {
	ep := n.endpoints[self]
	session, err := frost.NewKeygenSession(n.cs, self, n.ids, threshold,
		frost.WithKeygenRandom(n.rand),
		frost.WithKeygenAudit(n.audit),
		frost.WithKeygenSessionID(sessionID))
	if err != nil {
		return nil, nil, err
	}

	// Any return before Round3 completes leaves secrets behind; Abort is a
	// no-op on a finalized session.
	finalized := false
	defer func() {
		if !finalized {
			session.Abort()
		}
	}()

	round1, err := session.Round1()
	if err != nil {
		return nil, nil, err
	}
	payload, err := round1.Bytes()
	if err != nil {
		return nil, nil, err
	}
	if err := ep.Broadcast(ctx, sessionID, transport.MsgTypeRound1, payload); err != nil {
		return nil, nil, err
	}

	envs, err := ep.Collect(ctx, sessionID, transport.MsgTypeRound1, n.ids)
	if err != nil {
		return nil, nil, err
	}
	received := make([]*frost.Round1Package, 0, len(envs))
	for sender, env := range envs {
		pkg, err := n.decodeRound1(sender, env)
		if err != nil {
			return nil, nil, err
		}
		received = append(received, pkg)
	}

	shares, err := session.Round2(received)
	if err != nil {
		return nil, nil, err
	}
	for recipient, share := range shares {
		err := ep.SendSealed(ctx, sessionID, recipient, transport.MsgTypeRound2, share.Bytes())
		share.Zeroize()
		if err != nil {
			return nil, nil, err
		}
	}

	envs, err = ep.Collect(ctx, sessionID, transport.MsgTypeRound2, n.ids)
	if err != nil {
		return nil, nil, err
	}
	incoming := make([]*frost.SecretShare, 0, len(envs))
	for sender, env := range envs {
		share, err := n.openSecretShare(ep, sender, env)
		if err != nil {
			for _, s := range incoming {
				s.Zeroize()
			}
			return nil, nil, err
		}
		incoming = append(incoming, share)
	}

	keyShare, pub, err := session.Round3(incoming)
	if err != nil {
		return nil, nil, err
	}
	finalized = true
	return keyShare, pub, nil
}
