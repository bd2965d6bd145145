package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/user/securemsg/internal/config"
	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/keyserver"
	"github.com/user/securemsg/internal/keystore"
	"github.com/user/securemsg/internal/messaging"
	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/internal/prime"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "securemsg",
	Short: "Textbook RSA key generation and secure messaging",
	Long: `securemsg generates RSA key pairs from its own parallel prime search,
exchanges public keys through a key server and sends messages encrypted
with the recipient's key.

It can also run the key server itself and benchmark prime and key
generation on the local machine.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen [keysize]",
	Short: "Generate a key pair and write public.key and private.key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size := cfg.Keys.DefaultSize
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid key size %q", args[0])
			}
			size = n
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		return svc.KeyGen(cmd.Context(), size)
	},
}

var sendkeyCmd = &cobra.Command{
	Use:   "sendkey <email>",
	Short: "Publish the public key for an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		if err := svc.SendKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Key saved")
		return nil
	},
}

var getkeyCmd = &cobra.Command{
	Use:   "getkey <email>",
	Short: "Fetch and store the public key of an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		return svc.GetKey(cmd.Context(), args[0])
	},
}

var sendmsgCmd = &cobra.Command{
	Use:   "sendmsg <email> <plaintext>",
	Short: "Encrypt a message with the recipient's key and upload it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		if err := svc.SendMsg(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Message written")
		return nil
	},
}

var getmsgCmd = &cobra.Command{
	Use:   "getmsg <email>",
	Short: "Download and decrypt the message for an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		text, err := svc.GetMsg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env SECUREMSG_CONFIG)")
	rootCmd.AddCommand(keygenCmd, sendkeyCmd, getkeyCmd, sendmsgCmd, getmsgCmd)
}

// setup loads .env, the config file and environment overrides, then starts the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if configPath == "" {
		configPath = os.Getenv(config.EnvPrefix + "CONFIG")
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	logger.Init(logger.Config{
		Env:        cfg.Log.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	cmd.SetContext(logger.ToContext(cmd.Context(), logger.Named(cmd.Name())))
	return nil
}

func newPrimeGenerator() *prime.Generator {
	return &prime.Generator{Workers: cfg.Primes.Workers, Rounds: cfg.Primes.Rounds}
}

func newService() (*messaging.Service, error) {
	store, err := keystore.New(cfg.Keys.Dir)
	if err != nil {
		return nil, err
	}
	client, err := keyserver.New(cfg.Client.BaseURL,
		keyserver.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		keyserver.WithCacheTTL(cfg.Client.CacheTTL),
	)
	if err != nil {
		return nil, err
	}
	return messaging.New(keys.NewGenerator(newPrimeGenerator()), store, client), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
