// Package cli implements the ftpxfer command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	ftp "github.com/gonzalop/miniftp"
	"github.com/gonzalop/miniftp/ftpmetrics"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	flags      Profile
	profile    Profile

	logger  *slog.Logger
	metrics *ftpmetrics.Collector

	ok   *color.Color
	fail *color.Color
}

// NewRootCommand builds the ftpxfer command tree writing to the given
// streams.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		flags:  defaultProfile(),
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
	}

	root := &cobra.Command{
		Use:   "ftpxfer",
		Short: "Download and upload single files over FTP",
		Long: `ftpxfer transfers whole files in binary mode over passive (EPSV) data
connections. Connection settings come from a YAML profile
(default ` + DefaultProfilePath + `) and can be overridden with flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "profile file (default "+DefaultProfilePath+")")
	addFlags(root.PersistentFlags(), &a.flags)

	root.AddCommand(newGetCommand(a), newPutCommand(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	profile, err := LoadProfile(a.configPath)
	if err != nil {
		return err
	}
	merge(&profile, cmd.Flags(), &a.flags)
	if err := profile.Validate(); err != nil {
		return err
	}
	a.profile = profile

	level := slog.LevelWarn
	if profile.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	a.metrics = ftpmetrics.New("ftpxfer")

	if profile.MetricsAddr != "" {
		if err := a.serveMetrics(cmd.Context(), profile.MetricsAddr); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics exposes the collector until ctx is done.
func (a *app) serveMetrics(ctx context.Context, addr string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(a.metrics); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// connect opens a logged-in session using the merged profile.
func (a *app) connect() (*ftp.Session, error) {
	opts, err := a.profile.SessionOptions(a.logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, ftp.WithMetrics(a.metrics))

	s, err := ftp.New(opts...)
	if err != nil {
		return nil, err
	}
	p := a.profile
	if err := s.Connect(p.Host, p.Port, p.User, p.Password); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
