package cli

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get remote-path [local-path]",
		Short: "Download a file",
		Long: `Download remote-path into local-path. If local-path is omitted the file
is written to the current directory under its remote name.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := path.Base(args[0])
			if len(args) == 2 {
				local = args[1]
			}
			return a.get(args[0], local)
		},
	}
}

func (a *app) get(remote, local string) error {
	local, err := homedir.Expand(local)
	if err != nil {
		return err
	}

	s, err := a.connect()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	data, err := s.Download(remote)
	if err != nil {
		a.fail.Fprintf(a.stdout, "✗ %s: %v\n", remote, err)
		return err
	}
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", local, err)
	}
	_ = s.Quit()

	a.ok.Fprintf(a.stdout, "✓ %s -> %s (%d bytes)\n", remote, local, len(data))
	return nil
}

func newPutCommand(a *app) *cobra.Command {
	var remoteDir string
	cmd := &cobra.Command{
		Use:   "put local-path...",
		Short: "Upload one or more files",
		Long: `Upload each local-path into the remote directory given by --dir. Files
are uploaded concurrently, one session per file, at most --parallel at a
time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.put(remoteDir, args)
		},
	}
	cmd.Flags().StringVarP(&remoteDir, "dir", "d", "/", "remote directory")
	return cmd
}

func (a *app) put(remoteDir string, locals []string) error {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(a.profile.Parallel)

	for _, local := range locals {
		g.Go(func() error {
			remote, n, err := a.putOne(remoteDir, local)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.fail.Fprintf(a.stdout, "✗ %s: %v\n", local, err)
				return fmt.Errorf("%s: %w", local, err)
			}
			a.ok.Fprintf(a.stdout, "✓ %s -> %s (%d bytes)\n", local, remote, n)
			return nil
		})
	}
	return g.Wait()
}

func (a *app) putOne(remoteDir, local string) (string, int, error) {
	expanded, err := homedir.Expand(local)
	if err != nil {
		return "", 0, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", 0, err
	}

	remote := path.Join(remoteDir, filepath.Base(expanded))

	s, err := a.connect()
	if err != nil {
		return remote, 0, err
	}
	defer func() { _ = s.Close() }()

	n, err := s.Upload(remote, data)
	if err != nil {
		return remote, n, err
	}
	_ = s.Quit()
	return remote, n, nil
}
