package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/moatus/frost"
	"github.com/moatus/frost/adapters"
)

func (a *app) verifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature against the group public key",
		Long: `Verify a hex signature over a hex message under the group key in a public
key file. Exits non-zero when the signature is invalid.

Example:
  frostctl verify --public keys/public.json --message 48656c6c6f --signature 9a1f...`,
		RunE: a.runVerify,
	}
	cmd.Flags().String("public", "", "public key file")
	cmd.Flags().String("message", "", "message in hex")
	cmd.Flags().String("signature", "", "signature in hex")
	for _, name := range []string{"public", "signature"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	return cmd
}

func (a *app) runVerify(cmd *cobra.Command, args []string) error {
	pubPath, _ := cmd.Flags().GetString("public")
	pub, err := loadPublicKeys(pubPath, a.codec())
	if err != nil {
		return err
	}
	cs, err := frost.CiphersuiteByID(pub.Ciphersuite)
	if err != nil {
		return err
	}
	message, err := a.message(cmd)
	if err != nil {
		return err
	}
	rawSig, _ := cmd.Flags().GetString("signature")
	sigBytes, err := readHex(rawSig)
	if err != nil {
		return errors.Wrap(err, "signature hex")
	}
	sig, err := frost.DecodeSignature(cs, sigBytes)
	if err != nil {
		return err
	}
	if err := frost.Verify(cs, pub.GroupPublicKey, message, sig); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
	return nil
}

func (a *app) addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the Solana address of an Ed25519 group",
		RunE: func(cmd *cobra.Command, args []string) error {
			pubPath, _ := cmd.Flags().GetString("public")
			pub, err := loadPublicKeys(pubPath, a.codec())
			if err != nil {
				return err
			}
			adapter, err := adapters.NewSolanaAdapter(pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), adapter.Address().String())
			return nil
		},
	}
	cmd.Flags().String("public", "", "public key file")
	if err := cmd.MarkFlagRequired("public"); err != nil {
		panic(fmt.Sprintf("failed to mark public flag as required: %v", err))
	}
	return cmd
}

// configReport is what 'frostctl config' prints.
type configReport struct {
	Config frost.Config            `yaml:"config"`
	Result *frost.ValidationResult `yaml:"validation"`
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate the effective group configuration",
		Long: `Resolve the group configuration from flags, FROST_ environment variables and
the config file, run every validation check and print the result as YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			result := frost.NewDefaultConfigurationValidator().ValidateConfig(cfg)
			data, err := yaml.Marshal(configReport{Config: cfg, Result: result})
			if err != nil {
				return errors.Wrap(err, "render report")
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			return result.Err()
		},
	}
	addGroupFlags(cmd)
	return cmd
}
