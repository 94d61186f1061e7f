// Command bridged runs the bridge daemon: it serves standard Ethereum
// JSON-RPC on a local endpoint and relays each call to a chain node.
package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"cosmossdk.io/log"

	"github.com/dappchain/evmbridge/client"
	"github.com/dappchain/evmbridge/crypto"
	"github.com/dappchain/evmbridge/provider"
	"github.com/dappchain/evmbridge/rpc"
	"github.com/dappchain/evmbridge/server"
)

const (
	flagChainID    = "chain-id"
	flagWriteURL   = "write-url"
	flagReadURL    = "read-url"
	flagListen     = "listen"
	flagKeyFile    = "key-file"
	flagUnsafeCORS = "unsafe-cors"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bridged",
		Short:        "Ethereum JSON-RPC bridge for a DAppChain node",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			v.SetEnvPrefix("BRIDGED")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			return run(v)
		},
	}

	cmd.Flags().String(flagChainID, "default", "chain identifier transactions are scoped to")
	cmd.Flags().String(flagWriteURL, "ws://127.0.0.1:46657/websocket", "node endpoint transactions are committed to")
	cmd.Flags().String(flagReadURL, "ws://127.0.0.1:9999/queryws", "node endpoint queries and subscriptions go to (defaults to the write endpoint)")
	cmd.Flags().String(flagListen, "127.0.0.1:8545", "local address the bridge listens on")
	cmd.Flags().String(flagKeyFile, "", "file of base64 account keys, one per line")
	cmd.Flags().Bool(flagUnsafeCORS, false, "answer CORS preflights with allow-all")

	cmd.AddCommand(genKeyCmd())
	return cmd
}

func run(v *viper.Viper) error {
	logger := log.NewLogger(os.Stderr)

	keys, err := loadKeys(v.GetString(flagKeyFile))
	if err != nil {
		return err
	}

	write, err := dial(v.GetString(flagWriteURL), logger)
	if err != nil {
		return err
	}
	var read rpc.Transport
	if url := v.GetString(flagReadURL); url != "" && url != v.GetString(flagWriteURL) {
		if read, err = dial(url, logger); err != nil {
			return err
		}
	}

	c := client.NewClient(logger, v.GetString(flagChainID), write, read)
	defer c.Disconnect()

	p := provider.NewProvider(logger, c, keys)

	srv := server.NewServer(logger, p, server.Config{
		ListenAddr:      v.GetString(flagListen),
		HTTPTimeout:     server.DefaultConfig().HTTPTimeout,
		HTTPIdleTimeout: server.DefaultConfig().HTTPIdleTimeout,
		AllowUnsafeCORS: v.GetBool(flagUnsafeCORS),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	srv.Start(ctx, g)
	return g.Wait()
}

// dial picks the transport by URL scheme.
func dial(url string, logger log.Logger) (rpc.Transport, error) {
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return rpc.NewWSClient(url, logger), nil
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return rpc.NewHTTPClient(url, logger), nil
	}
	return nil, errors.Errorf("unsupported URL scheme in %q", url)
}

// loadKeys reads base64-encoded account keys, one per line. Blank lines and
// line comments are skipped. No file means no pre-registered accounts.
func loadKeys(path string) ([]ed25519.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "key file")
	}
	defer f.Close()

	var keys []ed25519.PrivateKey
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		priv, err := crypto.DecodeKeyBase64(line)
		if err != nil {
			return nil, errors.Wrap(err, "key file")
		}
		keys = append(keys, priv)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "key file")
	}
	return keys, nil
}

func genKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate an account key and print it base64-encoded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			addr := crypto.LocalAddressFromPublicKey(crypto.PublicKey(priv))
			fmt.Fprintln(cmd.OutOrStdout(), crypto.EncodeKeyBase64(priv))
			fmt.Fprintln(cmd.ErrOrStderr(), "address:", addr.String())
			return nil
		},
	}
}
