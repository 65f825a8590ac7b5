package loginfra

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// EnvVar selects the log level. It is read once at startup.
const EnvVar = "DEPLOY_LOG"

// Verbosity maps a DEPLOY_LOG value onto a klog verbosity. error, warn and
// info all log at V(0); debug is V(1) and trace is V(2). A plain number is
// used as is. The empty string means info.
func Verbosity(level string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "error", "warn", "warning", "info":
		return 0, nil
	case "debug":
		return 1, nil
	case "trace":
		return 2, nil
	}

	v, err := strconv.Atoi(level)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s value %q: expected one of error, warn, info, debug, trace or a non-negative number", EnvVar, level)
	}

	return v, nil
}

func NewFlagSet() *flag.FlagSet {
	// See https://flowerinthenight.com/blog/2019/02/05/golang-cobra-klog
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	// Suppress usage flag.ErrHelp
	fs.SetOutput(io.Discard)

	return fs
}

// Init registers the klog flags on a private flag set and applies the level
// from the environment. The returned flag set is meant to be handed to pflag.
func Init() (*flag.FlagSet, error) {
	fs := NewFlagSet()

	v, err := Verbosity(os.Getenv(EnvVar))
	if err != nil {
		return fs, err
	}

	return AddKlogFlags(fs, v), nil
}

func AddKlogFlags(fs *flag.FlagSet, verbosity int) *flag.FlagSet {
	klog.InitFlags(fs)

	// Configure klog
	fs.Set("skip_headers", "true")
	fs.Set("v", strconv.Itoa(verbosity))

	return fs
}

// NewLogger returns the process-wide logger backed by klog.
func NewLogger() logr.Logger {
	return klog.NewKlogr()
}
