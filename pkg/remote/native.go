package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// NativeRunner speaks SSH in-process. It authenticates with the agent at
// AgentSocket and with identity files given by -i, and verifies host keys
// against KnownHostsFile. Only the port and identity options are honored;
// other ssh options are logged and ignored.
type NativeRunner struct {
	Logger         logr.Logger
	KnownHostsFile string
	AgentSocket    string
	Timeout        time.Duration
}

func NewNativeRunner(logger logr.Logger, knownHostsFile string) *NativeRunner {
	return &NativeRunner{
		Logger:         logger,
		KnownHostsFile: knownHostsFile,
		AgentSocket:    os.Getenv("SSH_AUTH_SOCK"),
		Timeout:        30 * time.Second,
	}
}

func (r *NativeRunner) Run(ctx context.Context, h Host, command string) (string, error) {
	o := parseOpts(h.Opts)
	for _, ig := range o.ignored {
		r.Logger.V(1).Info("ignoring ssh option", "option", ig, "host", h.Hostname)
	}

	client, err := r.dial(ctx, h, o)
	if err != nil {
		return "", err
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("opening session on %s: %w", h.Destination(), err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	r.Logger.V(2).Info("running", "command", command, "host", h.Hostname)

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(command)
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("running %q on %s: %w: %s", command, h.Destination(), err, strings.TrimSpace(stderr.String()))
		}
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

func (r *NativeRunner) dial(ctx context.Context, h Host, o dialOptions) (*ssh.Client, error) {
	khFile, err := r.knownHostsFile()
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts: %w", err)
	}

	auth, closeAgent, err := r.authMethods(o)
	if err != nil {
		return nil, err
	}
	defer closeAgent()

	config := &ssh.ClientConfig{
		User:            h.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         r.Timeout,
	}

	port := o.port
	if port == "" {
		port = "22"
	}
	addr := net.JoinHostPort(h.Hostname, port)

	d := net.Dialer{Timeout: r.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	// NewClientConn knows neither ctx nor the timeout, so both are enforced
	// through the connection deadline.
	if dl, ok := handshakeDeadline(ctx, r.Timeout); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() && ctx.Err() != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// handshakeDeadline is the earlier of the ctx deadline and now+timeout.
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	dl, ok := ctx.Deadline()
	if timeout > 0 {
		if t := time.Now().Add(timeout); !ok || t.Before(dl) {
			dl, ok = t, true
		}
	}
	return dl, ok
}

func (r *NativeRunner) knownHostsFile() (string, error) {
	if r.KnownHostsFile != "" {
		return r.KnownHostsFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating known_hosts: %w", err)
	}

	return filepath.Join(home, ".ssh", "known_hosts"), nil
}

// authMethods returns identity file keys first, then the agent. The returned
// func releases the agent connection.
func (r *NativeRunner) authMethods(o dialOptions) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod

	var signers []ssh.Signer
	for _, f := range o.identityFiles {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, nil, fmt.Errorf("reading identity file: %w", err)
		}
		s, err := ssh.ParsePrivateKey(bs)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing identity file %s: %w", f, err)
		}
		signers = append(signers, s)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	closeAgent := func() {}

	if r.AgentSocket != "" {
		conn, err := net.Dial("unix", r.AgentSocket)
		if err != nil {
			r.Logger.V(1).Info("ssh agent unavailable", "socket", r.AgentSocket, "error", err.Error())
		} else {
			closeAgent = func() { conn.Close() }
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(methods) == 0 {
		return nil, nil, fmt.Errorf("no authentication method available (no identity file given and no ssh agent found)")
	}

	return methods, closeAgent, nil
}

type dialOptions struct {
	port          string
	identityFiles []string
	ignored       []string
}

// ssh(1) flags that take an argument.
const argFlags = "bcDEeFIiJLlmOoPpQRSWw"

func parseOpts(opts []string) dialOptions {
	var o dialOptions

	for i := 0; i < len(opts); i++ {
		a := opts[i]

		if len(a) < 2 || a[0] != '-' || !strings.ContainsRune(argFlags, rune(a[1])) {
			o.ignored = append(o.ignored, a)
			continue
		}

		flag, val := a[1], a[2:]
		if val == "" && i+1 < len(opts) {
			i++
			val = opts[i]
		}

		switch flag {
		case 'p':
			o.port = val
		case 'i':
			o.identityFiles = append(o.identityFiles, val)
		case 'o':
			k, v, ok := strings.Cut(val, "=")
			if !ok {
				k, v, ok = strings.Cut(val, " ")
			}
			switch {
			case ok && strings.EqualFold(k, "Port"):
				o.port = v
			case ok && strings.EqualFold(k, "IdentityFile"):
				o.identityFiles = append(o.identityFiles, v)
			default:
				o.ignored = append(o.ignored, "-o", val)
			}
		default:
			o.ignored = append(o.ignored, a[:2], val)
		}
	}

	return o
}
