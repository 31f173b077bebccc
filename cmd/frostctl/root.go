package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// app carries the state shared by every subcommand. Each root command gets
// its own viper instance so commands built in tests do not leak flags into
// each other.
type app struct {
	v      *viper.Viper
	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	var cfgFile string
	root := &cobra.Command{
		Use:   "frostctl",
		Short: "Threshold Ed25519 key generation and signing",
		Long: `frostctl runs FROST distributed key generation and threshold signing.

Use 'frostctl dkg' to generate key shares for a group.
Use 'frostctl sign' to sign a hex message with a quorum of key files.
Use 'frostctl verify' to check a signature against the group key.
Use 'frostctl address' to print the Solana address of an Ed25519 group.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				a.v.SetConfigFile(cfgFile)
				if err := a.v.ReadInConfig(); err != nil {
					return err
				}
			}
			a.v.SetEnvPrefix("FROST")
			a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
			a.v.AutomaticEnv()

			a.logger = newLogger(cmd.ErrOrStderr(), a.v.GetBool("verbose"))
			if cfgFile != "" {
				a.logger.Debug().Str("config", a.v.ConfigFileUsed()).Msg("loaded config file")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("codec", transport.CodecJSON, "key file and envelope codec ("+strings.Join(transport.Codecs, ", ")+")")
	flags.String("ciphersuite", string(frost.Ed25519), "ciphersuite (ed25519, secp256k1, babyjubjub or a full suite id)")
	flags.BoolP("verbose", "v", false, "debug logging")
	mustBind(a.v, "codec", flags.Lookup("codec"))
	mustBind(a.v, "ciphersuite", flags.Lookup("ciphersuite"))
	mustBind(a.v, "verbose", flags.Lookup("verbose"))

	root.AddCommand(
		a.dkgCommand(),
		a.signCommand(),
		a.verifyCommand(),
		a.addressCommand(),
		a.configCommand(),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) codec() string {
	return a.v.GetString("codec")
}
