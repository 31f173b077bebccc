package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/moatus/frost"
	"github.com/moatus/frost/adapters"
	"github.com/moatus/frost/simulation"
	"github.com/moatus/frost/transport/memory"
)

func (a *app) dkgCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dkg",
		Short: "Run distributed key generation",
		Long: `Run the three-round FROST key generation for every participant in-process
and write one key file per participant plus the group public key file.

Examples:
  # 2-of-3 Ed25519 group in ./keys
  frostctl dkg --min-signers 2 --max-signers 3 --out keys

  # named participants, YAML key files
  frostctl dkg --min-signers 2 --max-signers 3 --identifiers alice,bob,carol --codec yaml`,
		RunE: a.runDKG,
	}
	addGroupFlags(cmd)
	cmd.Flags().String("out", ".", "output directory")
	cmd.Flags().String("session-id", "", "session id (default: random UUID)")
	mustBind(a.v, "dkg.out", cmd.Flags().Lookup("out"))
	return cmd
}

// addGroupFlags registers the group parameters. Several commands share the
// same viper keys, so binding waits until a command actually runs.
func addGroupFlags(cmd *cobra.Command) {
	defaults := frost.DefaultConfig()
	cmd.Flags().Int("min-signers", defaults.MinSigners, "signing threshold t")
	cmd.Flags().Int("max-signers", defaults.MaxSigners, "number of participants n")
	cmd.Flags().StringSlice("identifiers", nil, "participant identifiers (numbers or names; default 1..n)")
}

// config resolves the group configuration from cmd's flags, the
// environment and the config file, in viper's precedence order.
func (a *app) config(cmd *cobra.Command) (frost.Config, error) {
	for key, flag := range map[string]string{
		"min_signers": "min-signers",
		"max_signers": "max-signers",
		"identifiers": "identifiers",
	} {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return frost.Config{}, errors.Wrapf(err, "bind %s", flag)
		}
	}
	return frost.Config{
		Ciphersuite: a.v.GetString("ciphersuite"),
		MinSigners:  a.v.GetInt("min_signers"),
		MaxSigners:  a.v.GetInt("max_signers"),
		Identifiers: a.v.GetStringSlice("identifiers"),
	}, nil
}

func (a *app) runDKG(cmd *cobra.Command, args []string) error {
	cfg, err := a.config(cmd)
	if err != nil {
		return err
	}
	if err := frost.NewDefaultConfigurationValidator().Validate(cfg); err != nil {
		return err
	}
	cs, err := cfg.Suite()
	if err != nil {
		return err
	}
	ids, err := cfg.ParticipantIdentifiers()
	if err != nil {
		return err
	}

	sessionID, _ := cmd.Flags().GetString("session-id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	out := a.v.GetString("dkg.out")
	if err := os.MkdirAll(out, 0o700); err != nil {
		return errors.Wrapf(err, "create %s", out)
	}

	router, err := memory.NewRouter(memory.WithCodec(a.codec()), memory.WithLogger(a.logger))
	if err != nil {
		return err
	}
	network, err := simulation.NewNetwork(cs, ids, router, simulation.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer network.Close()

	result, err := network.RunDKG(commandContext(cmd), sessionID, cfg.MinSigners)
	if err != nil {
		return err
	}
	defer func() {
		for _, ks := range result.KeyShares {
			ks.Zeroize()
		}
	}()

	for id, ks := range result.KeyShares {
		f, err := newKeyFile(ks)
		if err != nil {
			return err
		}
		path := filepath.Join(out, fmt.Sprintf("participant-%s.%s", id, a.codec()))
		if err := writeFile(path, a.codec(), f); err != nil {
			return err
		}
		a.logger.Debug().Str("file", path).Stringer("participant", id).Msg("wrote key share")
	}

	pubFile, err := newPublicKeyFile(result.PublicKeys)
	if err != nil {
		return err
	}
	if cs.ID() == frost.CiphersuiteEd25519 {
		adapter, err := adapters.NewSolanaAdapter(result.PublicKeys)
		if err != nil {
			return err
		}
		pubFile.SolanaAddress = adapter.Address().String()
	}
	pubPath := filepath.Join(out, "public."+a.codec())
	if err := writeFile(pubPath, a.codec(), pubFile); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "group public key: %s\n", pubFile.GroupPublicKey)
	if pubFile.SolanaAddress != "" {
		fmt.Fprintf(w, "solana address:   %s\n", pubFile.SolanaAddress)
	}
	fmt.Fprintf(w, "public key file:  %s\n", pubPath)
	return nil
}
