// Command xailyser-client dials a capture server's control channel and
// prints decoded frames as they arrive.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/negbie/logp"
	"github.com/spf13/cobra"

	"github.com/sipcapture/xailyser/internal/config"
	"github.com/sipcapture/xailyser/internal/transport"
)

var version = "dev"

var (
	configPath string
	profile    string
	compress   bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xailyser-client",
		Short:         "Inspection client for the xailyser capture server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to client config YAML")

	root.AddCommand(connectCmd())
	root.AddCommand(profilesCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("xailyser-client", version)
			return nil
		},
	}
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List saved connection profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Profiles) == 0 {
				fmt.Println("no saved profiles")
				return nil
			}
			for _, p := range cfg.Profiles {
				fmt.Printf("%s\t%s:%d\n", p.Name, p.Host, p.Port)
			}
			return nil
		},
	}
}

func connectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect [host:port]",
		Short: "Connect to a capture server and stream decoded frames",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(configPath)
			if err != nil {
				return err
			}
			initLogging(cfg.Log)

			addr, password, err := resolveTarget(cfg, args)
			if err != nil {
				return err
			}
			return runClient(addr, password, compress)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "saved profile name, resolved from the client config instead of a host:port argument")
	cmd.Flags().BoolVar(&compress, "compress", false, "negotiate the compact wire encoding")
	return cmd
}

// resolveTarget picks the dial address and password either from a
// positional host:port argument or from a saved profile named by
// --profile (spec.md §11's connection profiles). The password itself is
// never stored in ClientConfig (only AuthKeyHash is, for display/lookup
// purposes) so it always comes from the environment.
func resolveTarget(cfg *config.ClientConfig, args []string) (addr, password string, err error) {
	password = os.Getenv("XAILYSER_PASSWORD")

	if profile != "" {
		for _, p := range cfg.Profiles {
			if p.Name == profile {
				return fmt.Sprintf("%s:%d", p.Host, p.Port), password, nil
			}
		}
		return "", "", fmt.Errorf("no saved profile named %q", profile)
	}

	if len(args) == 1 {
		return args[0], password, nil
	}

	return "", "", fmt.Errorf("specify a host:port argument or --profile")
}

func initLogging(cfg config.LogConfig) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if err := logp.Init("xailyser-client", &logp.Logging{
		Level:     level,
		Selectors: []string{"*"},
	}); err != nil {
		fmt.Fprintln(os.Stderr, "logp init failed:", err)
	}
}

func runClient(addr, password string, compressionEnabled bool) error {
	url := fmt.Sprintf("ws://%s/socket", addr)
	origin := fmt.Sprintf("http://%s/", addr)

	sess, err := transport.Dial(url, origin, password, compressionEnabled)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer sess.Close()

	if err := sess.SendRequest(transport.ClientRequest{Kind: transport.RequestServerSettings}); err != nil {
		return fmt.Errorf("request settings: %w", err)
	}

	hb := transport.NewHeartbeat(transport.DefaultSyncDelay, transport.DefaultPingTimeout)
	hb.Update(time.Now())

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	messages := make(chan transport.ServerMessage)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := sess.ReceiveMessage()
			if err != nil {
				recvErr <- err
				return
			}
			messages <- msg
		}
	}()

	ticker := time.NewTicker(transport.DefaultSyncDelay)
	defer ticker.Stop()

	for {
		select {
		case msg := <-messages:
			hb.Update(time.Now())
			if err := printMessage(out, msg); err != nil {
				logp.Warn("print message: %v", err)
			}
			out.Flush()

		case err := <-recvErr:
			return fmt.Errorf("receive: %w", err)

		case now := <-ticker.C:
			if hb.Unresponsive(now) {
				return fmt.Errorf("server unresponsive, no sync within %v", hb.PingTimeout())
			}
			if hb.PingNeeded(now) {
				if err := sess.SendRequest(transport.ClientRequest{Kind: transport.RequestServerSettings}); err != nil {
					return fmt.Errorf("ping: %w", err)
				}
				hb.MarkPingSent()
			}
		}
	}
}

func printMessage(out *bufio.Writer, msg transport.ServerMessage) error {
	enc := json.NewEncoder(out)
	return enc.Encode(msg)
}
