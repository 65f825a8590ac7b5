// Package config loads the optional tool configuration file.
//
// Command line flags take precedence over every value read here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/twpayne/go-vfs"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/nix"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "deploy.yaml"

const (
	TransportExec   = "exec"
	TransportNative = "native"
)

type Config struct {
	CheckSigs      bool     `yaml:"checkSigs"`
	ExtraBuildArgs []string `yaml:"extraBuildArgs"`
	// SSHTransport is either "exec" to run the ssh binary or "native" for
	// the built-in client.
	SSHTransport   string  `yaml:"sshTransport"`
	KnownHostsFile string  `yaml:"knownHostsFile"`
	Metrics        Metrics `yaml:"metrics"`
	Nix            Nix     `yaml:"nix"`
}

type Metrics struct {
	// Pushgateway is the base URL of a Prometheus pushgateway. Metrics are
	// only pushed when it is set.
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

type Nix struct {
	MinVersion string `yaml:"minVersion"`
}

func Default() *Config {
	return &Config{
		SSHTransport: TransportExec,
		Metrics: Metrics{
			Job: "deploy",
		},
		Nix: Nix{
			MinVersion: nix.DefaultMinVersion,
		},
	}
}

func (c *Config) Validate() error {
	switch c.SSHTransport {
	case TransportExec, TransportNative:
	default:
		return deployerr.Newf(deployerr.Config, "unsupported sshTransport %q: expected %q or %q", c.SSHTransport, TransportExec, TransportNative)
	}

	if c.Metrics.Pushgateway != "" && c.Metrics.Job == "" {
		return deployerr.New(deployerr.Config, "metrics.job must be set when metrics.pushgateway is")
	}

	return nil
}

type loader struct {
	fs   vfs.FS
	path string
	wd   string
}

// Load reads the file given by the Path option, or DefaultFileName in the
// working directory when it exists. Without a file the defaults are returned.
func Load(opts ...Option) (*Config, error) {
	l := &loader{}

	for _, o := range opts {
		if err := o.SetOption(l); err != nil {
			return nil, err
		}
	}

	if l.fs == nil {
		l.fs = vfs.HostOSFS
	}

	if l.wd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		l.wd = wd
	}

	path := l.path
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.wd, path)
	}

	bs, err := l.fs.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, deployerr.Wrapf(err, deployerr.Config, "reading config file")
	}

	c, err := Parse(bs)
	if err != nil {
		return nil, deployerr.Wrapf(err, deployerr.Config, "loading %s", path)
	}

	return c, nil
}

// Parse decodes a configuration document over the defaults. Unknown keys are
// rejected.
func Parse(bs []byte) (*Config, error) {
	c := Default()

	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}
