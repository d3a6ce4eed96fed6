package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"golang.org/x/text/encoding/htmlindex"
	yaml "gopkg.in/yaml.v2"

	ftp "github.com/gonzalop/miniftp"
)

// DefaultProfilePath is read when --config is not given. A missing file
// there is not an error.
const DefaultProfilePath = "~/.ftpxfer.yaml"

// Profile holds connection settings. It is loaded from a YAML file and
// then overridden by any flag set on the command line.
type Profile struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Timeout        time.Duration `yaml:"timeout"`
	Framing        string        `yaml:"framing"`
	Encoding       string        `yaml:"encoding"`
	BandwidthLimit int64         `yaml:"bandwidth_limit"`
	MaxDownload    int64         `yaml:"max_download"`
	Parallel       int           `yaml:"parallel"`
	Verbose        bool          `yaml:"verbose"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

func defaultProfile() Profile {
	return Profile{
		Port:     21,
		User:     "anonymous",
		Password: "anonymous@",
		Timeout:  30 * time.Second,
		Framing:  "per-read",
		Parallel: 4,
	}
}

// LoadProfile reads a YAML profile on top of the defaults.
func LoadProfile(path string) (Profile, error) {
	p := defaultProfile()

	explicit := path != ""
	if !explicit {
		path = DefaultProfilePath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return p, fmt.Errorf("failed to expand profile path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile %s: %w", expanded, err)
	}
	return p, nil
}

// addFlags registers the connection flags, with p's values as the
// defaults shown in help.
func addFlags(flags *pflag.FlagSet, p *Profile) {
	flags.StringVarP(&p.Host, "host", "H", p.Host, "FTP server host")
	flags.IntVarP(&p.Port, "port", "P", p.Port, "FTP server port")
	flags.StringVarP(&p.User, "user", "u", p.User, "login user")
	flags.StringVarP(&p.Password, "password", "p", p.Password, "login password")
	flags.DurationVar(&p.Timeout, "timeout", p.Timeout, "timeout for dialing, replies and data I/O (0 disables)")
	flags.StringVar(&p.Framing, "framing", p.Framing, "reply framing: per-read or per-reply")
	flags.StringVar(&p.Encoding, "encoding", p.Encoding, "control connection character encoding (e.g. iso-8859-1)")
	flags.Int64Var(&p.BandwidthLimit, "bwlimit", p.BandwidthLimit, "data connection limit in bytes per second (0 is unlimited)")
	flags.Int64Var(&p.MaxDownload, "max-download", p.MaxDownload, "refuse downloads larger than this many bytes (0 is unlimited)")
	flags.IntVar(&p.Parallel, "parallel", p.Parallel, "number of uploads to run at once")
	flags.BoolVarP(&p.Verbose, "verbose", "v", p.Verbose, "log protocol traffic")
	flags.StringVar(&p.MetricsAddr, "metrics-addr", p.MetricsAddr, "serve Prometheus metrics on this address while running")
}

// merge copies every flag the user set from flags into p.
func merge(p *Profile, flags *pflag.FlagSet, set *Profile) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			p.Host = set.Host
		case "port":
			p.Port = set.Port
		case "user":
			p.User = set.User
		case "password":
			p.Password = set.Password
		case "timeout":
			p.Timeout = set.Timeout
		case "framing":
			p.Framing = set.Framing
		case "encoding":
			p.Encoding = set.Encoding
		case "bwlimit":
			p.BandwidthLimit = set.BandwidthLimit
		case "max-download":
			p.MaxDownload = set.MaxDownload
		case "parallel":
			p.Parallel = set.Parallel
		case "verbose":
			p.Verbose = set.Verbose
		case "metrics-addr":
			p.MetricsAddr = set.MetricsAddr
		}
	})
}

// Validate reports settings that cannot produce a working session.
func (p Profile) Validate() error {
	if p.Host == "" {
		return errors.New("no host given (use --host or a profile)")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port: %d", p.Port)
	}
	if p.Parallel < 1 {
		return fmt.Errorf("invalid parallel: %d", p.Parallel)
	}
	return nil
}

// SessionOptions translates the profile into session options.
func (p Profile) SessionOptions(logger *slog.Logger) ([]ftp.Option, error) {
	opts := []ftp.Option{
		ftp.WithTimeout(p.Timeout),
		ftp.WithLogger(logger),
		ftp.WithBandwidthLimit(p.BandwidthLimit),
		ftp.WithMaxDownloadSize(p.MaxDownload),
	}

	switch p.Framing {
	case "", ftp.FramePerRead.String():
		opts = append(opts, ftp.WithReplyFraming(ftp.FramePerRead))
	case ftp.FramePerReply.String():
		opts = append(opts, ftp.WithReplyFraming(ftp.FramePerReply))
	default:
		return nil, fmt.Errorf("unknown framing %q", p.Framing)
	}

	if p.Encoding != "" {
		enc, err := htmlindex.Get(p.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", p.Encoding, err)
		}
		opts = append(opts, ftp.WithEncoding(enc))
	}

	return opts, nil
}
