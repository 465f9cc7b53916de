package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inertialabsxyz/movement/pkg/da/lightnode"
)

const (
	flagLocalDAHost        = "host"
	flagLocalDAPort        = "port"
	flagLocalDAListenAll   = "listen-all"
	flagLocalDAMaxBlobSize = "max-blob-size"
	flagLocalDABlockTime   = "block-time"
	flagLocalDAStartHeight = "start-height"
	flagLocalDAHTTP1       = "http1"
)

// LocalDACmd runs an in-memory light node for development networks.
func LocalDACmd() *cobra.Command {
	localDACmd := &cobra.Command{
		Use:          "local-da",
		Short:        "Run an in-memory DA light node",
		Long:         "Runs an in-memory light node serving the blob and header JSON-RPC namespaces. Not production ready! Intended only for development and testing!",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			host, _ := flags.GetString(flagLocalDAHost)
			port, _ := flags.GetString(flagLocalDAPort)
			listenAll, _ := flags.GetBool(flagLocalDAListenAll)
			maxBlobSize, _ := flags.GetUint64(flagLocalDAMaxBlobSize)
			blockTime, _ := flags.GetDuration(flagLocalDABlockTime)
			startHeight, _ := flags.GetUint64(flagLocalDAStartHeight)
			http1, _ := flags.GetBool(flagLocalDAHTTP1)

			if listenAll {
				host = "0.0.0.0"
			}

			logger := newLogger(os.Stderr, logConfigFromFlags(cmd)).With().Str("component", "da").Logger()

			local := lightnode.NewLocalDA(logger,
				lightnode.WithMaxBlobSize(maxBlobSize),
				lightnode.WithBlockTime(blockTime),
				lightnode.WithStartHeight(startHeight),
			)

			ctx := cmd.Context()
			local.Start(ctx)

			srv := lightnode.NewServer(logger, net.JoinHostPort(host, port), local, !http1)
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("failed to start local DA server: %w", err)
			}
			logger.Info().Str("address", srv.Addr()).Uint64("max_blob_size", maxBlobSize).Msg("listening on")

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupt)

			select {
			case <-interrupt:
				logger.Info().Msg("exiting...")
			case <-ctx.Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}

	localDACmd.Flags().String(flagLocalDAHost, "localhost", "listening address")
	localDACmd.Flags().String(flagLocalDAPort, "30730", "listening port")
	localDACmd.Flags().Bool(flagLocalDAListenAll, false, "listen on all network interfaces (0.0.0.0) instead of just localhost")
	localDACmd.Flags().Uint64(flagLocalDAMaxBlobSize, lightnode.DefaultMaxBlobSize, "maximum blob size in bytes")
	localDACmd.Flags().Duration(flagLocalDABlockTime, lightnode.DefaultBlockTime, "interval between empty blocks (0 seals blocks only on submission)")
	localDACmd.Flags().Uint64(flagLocalDAStartHeight, 0, "height of the light node on startup")
	localDACmd.Flags().Bool(flagLocalDAHTTP1, false, "serve HTTP/1.1 only instead of also accepting cleartext HTTP/2")
	return localDACmd
}
