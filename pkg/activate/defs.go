package activate

import (
	"fmt"
	"os"
	"os/user"
	"path"

	"github.com/variantdev/deploy/pkg/deploycoordinator"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/settings"
)

// Defs are the values derived for one target once all defaults are applied.
type Defs struct {
	SSHUser     string
	ProfileUser string
	ProfilePath string
	Hostname    string
	SSHOpts     []string
	// StorePath is the built profile to activate.
	StorePath string
	// SudoCmd prefixes remote commands when the profile belongs to another
	// user than the one we connect as. Empty otherwise.
	SudoCmd      []string
	AutoRollback bool
	// FastConnection skips substitution on the target during the push.
	FastConnection bool
}

// NewDefs derives the defaults for t. sshUserDefault is used when no SSH user
// is set at any level.
func NewDefs(t *deploycoordinator.EffectiveTarget, sshUserDefault string) (*Defs, error) {
	s := t.Settings

	hostname := settings.StringValue(s.Hostname, "")
	if hostname == "" {
		return nil, deployerr.Newf(deployerr.Config, "node %s has no hostname", t.Node)
	}

	storePath, ok := t.Payload.StringField("path")
	if !ok || storePath == "" {
		return nil, deployerr.Newf(deployerr.Config, "profile %s of node %s has no path", t.Profile, t.Node)
	}

	sshUser := settings.StringValue(s.SSHUser, sshUserDefault)
	if sshUser == "" {
		return nil, deployerr.Newf(deployerr.Config, "no ssh user for node %s and the current user is unknown", t.Node)
	}

	profileUser := settings.StringValue(s.User, sshUser)

	profilePath, ok := t.Payload.StringField("profilePath")
	if !ok || profilePath == "" {
		profilePath = DefaultProfilePath(profileUser, t.Profile)
	}

	d := &Defs{
		SSHUser:        sshUser,
		ProfileUser:    profileUser,
		ProfilePath:    profilePath,
		Hostname:       hostname,
		SSHOpts:        s.SSHOpts,
		StorePath:      storePath,
		AutoRollback:   settings.BoolValue(s.AutoRollback, false),
		FastConnection: settings.BoolValue(s.FastConnection, false),
	}

	if profileUser != sshUser {
		d.SudoCmd = []string{"sudo", "-u", profileUser}
	}

	return d, nil
}

// DefaultProfilePath is where Nix keeps the named profile of u.
func DefaultProfilePath(u, profile string) string {
	switch {
	case u == "root" && profile == "system":
		return "/nix/var/nix/profiles/system"
	case u == "root":
		return path.Join("/nix/var/nix/profiles", profile)
	}
	return path.Join("/nix/var/nix/profiles/per-user", u, profile)
}

// CurrentUser returns $USER, falling back to the account database.
func CurrentUser() (string, error) {
	if u := os.Getenv("USER"); u != "" {
		return u, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("looking up the current user: %w", err)
	}

	return u.Username, nil
}
