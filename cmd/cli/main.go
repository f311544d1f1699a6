// Command ik is an operator CLI for the IronKeep key server.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/ironkeep/internal/device"
	"github.com/and161185/ironkeep/internal/transport/grpcclient"
	"github.com/and161185/ironkeep/pkg/sdk"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// globals holds the persistent flags.
type globals struct {
	addr       string
	insecure   bool
	caPath     string
	devicePath string
	timeout    time.Duration
	verbose    bool

	// connect opens a backend; replaced in tests.
	connect func(g *globals) (sdk.Backend, io.Closer, error)
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	return rootCmd(&globals{connect: dialBackend, out: out})
}

func rootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "ik",
		Short:         "IronKeep key server CLI",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.addr == "" {
				g.addr = os.Getenv("IK_ADDR")
			}
			if g.addr == "" {
				g.addr = "localhost:8443"
			}
			if g.devicePath == "" {
				g.devicePath = filepath.Join(cfgDir(), "device.json")
			}
		},
	}
	root.SetOut(g.out)
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "key server address (or set IK_ADDR)")
	root.PersistentFlags().BoolVar(&g.insecure, "insecure", false, "skip certificate verification (dev)")
	root.PersistentFlags().StringVar(&g.caPath, "cacert", "", "CA certificate (PEM); empty dials without TLS")
	root.PersistentFlags().StringVar(&g.devicePath, "device", "", "device context file")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "per operation timeout")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(versionCmd(g))
	root.AddCommand(userCmd(g))
	root.AddCommand(deviceCmd(g))
	root.AddCommand(jwtCmd(g))
	root.AddCommand(idCmd(g))
	root.AddCommand(encryptCmd(g))
	root.AddCommand(decryptCmd(g))
	root.AddCommand(groupCmd(g))
	return root
}

func versionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(g.out, "ik %s (%s)\n", version, buildDate)
		},
	}
}

// ---- config dir ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ironkeep")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ironkeep")
}

func saveDevice(path string, dev *device.Context) error {
	b, err := dev.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func loadDevice(path string) (*device.Context, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device context (run `ik user create` or `ik device create`): %w", err)
	}
	return device.FromJSON(b)
}

// ---- grpc dial ----

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func dialBackend(g *globals) (sdk.Backend, io.Closer, error) {
	tlsCfg, err := loadTLS(g.caPath, g.insecure)
	if err != nil {
		return nil, nil, err
	}
	c, cc, err := grpcclient.Dial(g.addr, tlsCfg)
	if err != nil {
		return nil, nil, err
	}
	return c, cc, nil
}

func (g *globals) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// session loads the device context and opens a session on it.
func (g *globals) session(ctx context.Context) (*sdk.Session, io.Closer, error) {
	dev, err := loadDevice(g.devicePath)
	if err != nil {
		return nil, nil, err
	}
	b, closer, err := g.connect(g)
	if err != nil {
		return nil, nil, err
	}
	cfg := sdk.DefaultConfig()
	cfg.OperationTimeout = g.timeout
	s, err := sdk.Initialize(ctx, dev, b, cfg, sdk.WithLogger(g.logger()))
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return s, closer, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" || p == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func writeAll(g *globals, p string, b []byte) error {
	if p == "-" || p == "" {
		_, err := g.out.Write(b)
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
