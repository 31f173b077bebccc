package main

import (
	"bufio"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/moatus/frost"
	"github.com/moatus/frost/adapters"
	"github.com/moatus/frost/simulation"
	"github.com/moatus/frost/transport/memory"
)

func (a *app) signCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a hex message with a quorum of key files",
		Long: `Run the two-round FROST signing protocol among the holders of the given key
files and print the 64-byte signature in hex. The message is read from
--message or, when absent, as one hex line from standard input.

Example:
  frostctl sign --public keys/public.json \
    --key keys/participant-1.json --key keys/participant-3.json \
    --message 48656c6c6f`,
		RunE: a.runSign,
	}
	cmd.Flags().StringArray("key", nil, "key file of a signer (repeat for each signer)")
	cmd.Flags().String("public", "", "public key file")
	cmd.Flags().String("message", "", "message in hex")
	if err := cmd.MarkFlagRequired("public"); err != nil {
		panic(fmt.Sprintf("failed to mark public flag as required: %v", err))
	}
	return cmd
}

func (a *app) runSign(cmd *cobra.Command, args []string) error {
	pubPath, _ := cmd.Flags().GetString("public")
	pub, err := loadPublicKeys(pubPath, a.codec())
	if err != nil {
		return err
	}
	cs, err := frost.CiphersuiteByID(pub.Ciphersuite)
	if err != nil {
		return err
	}

	keyPaths, _ := cmd.Flags().GetStringArray("key")
	keyShares := make(map[frost.Identifier]*frost.KeyShare, len(keyPaths))
	signers := make([]frost.Identifier, 0, len(keyPaths))
	defer func() {
		for _, ks := range keyShares {
			ks.Zeroize()
		}
	}()
	for _, path := range keyPaths {
		ks, err := loadKeyShare(path, a.codec())
		if err != nil {
			return err
		}
		if err := frost.VerifyKeyShare(ks, pub); err != nil {
			return errors.Wrapf(err, "key share in %s", path)
		}
		if _, dup := keyShares[ks.Identifier]; dup {
			return errors.Wrapf(frost.ErrDuplicateParticipant, "%s repeats participant %s", path, ks.Identifier)
		}
		keyShares[ks.Identifier] = ks
		signers = append(signers, ks.Identifier)
	}
	if len(signers) < pub.MinSigners {
		return frost.ErrInsufficientSigners.WithDetails("%d key files, need %d", len(signers), pub.MinSigners)
	}

	message, err := a.message(cmd)
	if err != nil {
		return err
	}

	router, err := memory.NewRouter(memory.WithCodec(a.codec()), memory.WithLogger(a.logger))
	if err != nil {
		return err
	}
	network, err := simulation.NewNetwork(cs, signers, router, simulation.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer network.Close()

	sig, err := network.RunSigning(commandContext(cmd), uuid.NewString(), signers, keyShares, pub, message)
	if err != nil {
		return err
	}
	if cs.ID() == frost.CiphersuiteEd25519 {
		adapter, err := adapters.NewSolanaAdapter(pub)
		if err != nil {
			return err
		}
		solSig, err := adapter.ToSolanaSignature(sig)
		if err != nil {
			return err
		}
		if err := adapter.VerifySignature(message, solSig); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig.Bytes()))
	return nil
}

func (a *app) message(cmd *cobra.Command) ([]byte, error) {
	raw, _ := cmd.Flags().GetString("message")
	if raw == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return nil, errors.Wrap(err, "read message from stdin")
		}
		raw = line
	}
	message, err := readHex(raw)
	if err != nil {
		return nil, errors.Wrap(err, "message hex")
	}
	return message, nil
}
