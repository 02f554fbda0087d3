// netprobe probes the local host for free ports and reachable addresses.
// It is the operator-facing face of the library: test harnesses shell out
// to it when they are not written in Go.
package main

import (
	"fmt"
	"os"
	"strconv"

	glog "github.com/omgolab/go-commons/pkg/log"
	"github.com/spf13/cobra"

	"github.com/omgolab/go-netprobe/pkg/hostaddr"
	"github.com/omgolab/go-netprobe/pkg/port"
)

func main() {
	logger, err := glog.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "netprobe",
		Short:         "Probe the local host for free ports and reachable addresses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		portCmd(logger),
		ipCmd(),
		addrCmd(),
		freeCmd(logger),
	)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", err)
		os.Exit(1)
	}
}

func portCmd(logger glog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "port",
		Short: "Reserve and print an available non-ephemeral TCP port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := port.TryGetAvailablePort()
			if err != nil {
				logger.Fatal("port range exhausted", err)
			}
			logger.Debug("reserved port", glog.LogFields{"port": p})
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func ipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ip",
		Short: "Print the first non-loopback local address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, ok := hostaddr.GetLocalIP()
			if !ok {
				return fmt.Errorf("no non-loopback interface found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
}

func addrCmd() *cobra.Command {
	var ipv6 bool
	cmd := &cobra.Command{
		Use:   "addr",
		Short: "Print a TCP listen multiaddr carrying a reserved port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), hostaddr.GetAvailablePortInMultiaddr(!ipv6))
			return nil
		},
	}
	cmd.Flags().BoolVar(&ipv6, "ipv6", false, "build an IPv6 loopback address instead of the IPv4 wildcard")
	return cmd
}

func freeCmd(logger glog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "free <port>...",
		Short: "Kill whatever holds the given TCP ports and confirm they bind again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ports := make([]uint16, 0, len(args))
			for _, a := range args {
				n, err := strconv.ParseUint(a, 10, 16)
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", a, err)
				}
				ports = append(ports, uint16(n))
			}
			if err := port.Reclaim(ports...); err != nil {
				return err
			}
			logger.Info("ports freed", glog.LogFields{"ports": args})
			return nil
		},
	}
}
