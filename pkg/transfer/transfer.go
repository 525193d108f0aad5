package transfer

import (
	"context"
	"time"

	"github.com/quarrydb/quarry/pkg/types"
)

// Request describes one delivery of a staged export file.
type Request struct {
	// LocalPath is the materialised file under the tmp export location.
	LocalPath string
	// FinalPath is the destination path, on the local filesystem or on
	// the remote host depending on the selected mode.
	FinalPath string
}

// Service delivers a staged export file to its final destination.
type Service interface {
	// Deliver moves the file named by req. It returns nil only once the
	// file is in place at req.FinalPath.
	Deliver(ctx context.Context, req Request) error

	// Mode names the delivery mechanism for logs and metrics.
	Mode() string
}

// Options carries the process-wide transfer defaults from configuration.
type Options struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Key           string
	KeyPassphrase string

	KnownHostsPath string
	Timeout        time.Duration
	Keepalive      time.Duration
}

// PickFunc chooses the delivery service for one query.
type PickFunc func(q *types.Query, settings *types.UserSettings) Service

// Picker binds opts and returns the per-query chooser the worker calls.
func Picker(opts Options) PickFunc {
	return func(q *types.Query, settings *types.UserSettings) Service {
		return Pick(q, settings, opts)
	}
}

// Pick resolves the transfer mode for one query. The SSH hostname is
// taken from the query override first, then the user settings, then the
// process default; with no hostname at any level the file is copied on
// the local filesystem.
func Pick(q *types.Query, settings *types.UserSettings, opts Options) Service {
	host := opts.Host
	if settings != nil && settings.SSHHostname != "" {
		host = settings.SSHHostname
	}
	if q != nil && q.SSHHostname != "" {
		host = q.SSHHostname
	}
	if host == "" {
		return NewLocalCopy()
	}
	return NewRemoteSCP(host, resolveSSH(settings, opts))
}

// sshParams is the resolved connection parameter set for one delivery.
type sshParams struct {
	port          int
	username      string
	password      string
	key           string
	keyPassphrase string

	knownHostsPath string
	timeout        time.Duration
	keepalive      time.Duration
}

// resolveSSH applies the credential precedence: the user's credential
// block wins whenever ssh_username is set, otherwise the process
// defaults apply. Port falls back independently of the credentials.
func resolveSSH(settings *types.UserSettings, opts Options) sshParams {
	p := sshParams{
		port:           opts.Port,
		username:       opts.Username,
		password:       opts.Password,
		key:            opts.Key,
		keyPassphrase:  opts.KeyPassphrase,
		knownHostsPath: opts.KnownHostsPath,
		timeout:        opts.Timeout,
		keepalive:      opts.Keepalive,
	}
	if settings != nil && settings.SSHUsername != "" {
		p.username = settings.SSHUsername
		p.password = settings.SSHPassword
		p.key = settings.SSHKey
		p.keyPassphrase = settings.SSHKeyPassphrase
	}
	if settings != nil && settings.SSHPort > 0 {
		p.port = settings.SSHPort
	}
	if p.port == 0 {
		p.port = 22
	}
	if p.timeout == 0 {
		p.timeout = 30 * time.Second
	}
	if p.keepalive == 0 {
		p.keepalive = 30 * time.Second
	}
	return p
}
