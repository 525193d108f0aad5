package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// ErrNoCredentials is returned when neither a private key nor a
// password is available for the resolved SSH identity.
var ErrNoCredentials = errors.New("no ssh credentials configured")

// PermissionError marks an SSH failure that retrying cannot fix. The
// worker fails the query immediately; there is no local fallback.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// sshClient is the subset of *ssh.Client the transfer uses. Tests
// substitute a scripted fake through the dial function.
type sshClient interface {
	NewSession() (sshSession, error)
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)
	Close() error
}

// sshSession is the subset of *ssh.Session the transfer uses.
type sshSession interface {
	Run(cmd string) error
	Start(cmd string) error
	Wait() error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	Close() error
}

type dialFunc func(network, addr string, config *ssh.ClientConfig) (sshClient, error)

func sshDial(network, addr string, config *ssh.ClientConfig) (sshClient, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &realClient{Client: client}, nil
}

// realClient adapts *ssh.Client to the sshClient interface.
type realClient struct {
	*ssh.Client
}

func (c *realClient) NewSession() (sshSession, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RemoteSCP delivers exports to a remote host over SSH using the SCP
// source protocol.
type RemoteSCP struct {
	host   string
	params sshParams
	dial   dialFunc
	logger zerolog.Logger

	maxAttempts uint64
	retryDelay  time.Duration
}

// NewRemoteSCP creates a remote delivery service for host.
func NewRemoteSCP(host string, params sshParams) *RemoteSCP {
	return &RemoteSCP{
		host:        host,
		params:      params,
		dial:        sshDial,
		logger:      log.WithComponent("transfer"),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// Mode names the delivery mechanism.
func (r *RemoteSCP) Mode() string { return "scp" }

// Deliver uploads the staged file to req.FinalPath on the remote host.
// Each attempt opens a fresh connection, creates the destination
// directory, streams the file, verifies it landed and sets mode 0644.
// Attempts are separated by a fixed delay; permission denied aborts
// immediately without retrying.
func (r *RemoteSCP) Deliver(ctx context.Context, req Request) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), r.maxAttempts-1),
		ctx,
	)

	attempt := 0
	op := func() error {
		attempt++
		metrics.TransferAttempts.WithLabelValues(r.Mode()).Inc()

		err := r.deliverOnce(req)
		if err == nil {
			return nil
		}
		metrics.TransferFailures.WithLabelValues(r.Mode()).Inc()

		if errors.Is(err, ErrNoCredentials) {
			return backoff.Permanent(err)
		}
		if permissionDenied(err) {
			return backoff.Permanent(&PermissionError{Err: err})
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Str("host", r.host).
			Msg("Transfer attempt failed, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("scp transfer to %s: %w", r.host, err)
	}
	return nil
}

// deliverOnce performs one complete transfer attempt.
func (r *RemoteSCP) deliverOnce(req Request) error {
	config, err := r.clientConfig()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(r.host, strconv.Itoa(r.params.port))
	client, err := r.dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer client.Close()

	stopKeepalive := r.startKeepalive(client)
	defer stopKeepalive()

	remoteDir := path.Dir(req.FinalPath)
	if err := runCommand(client, fmt.Sprintf(`mkdir -p "%s"`, remoteDir)); err != nil {
		return fmt.Errorf("create remote directory: %w", err)
	}
	if err := r.upload(client, req.LocalPath, req.FinalPath); err != nil {
		return fmt.Errorf("scp upload: %w", err)
	}
	if err := runCommand(client, fmt.Sprintf(`ls -l "%s"`, req.FinalPath)); err != nil {
		return fmt.Errorf("verify remote file: %w", err)
	}
	if err := runCommand(client, fmt.Sprintf(`chmod 644 "%s"`, req.FinalPath)); err != nil {
		return fmt.Errorf("set remote file mode: %w", err)
	}

	r.logger.Info().
		Str("host", r.host).
		Str("final_path", req.FinalPath).
		Msg("Export file delivered over scp")
	return nil
}

// clientConfig builds the ssh client configuration from the resolved
// parameters. Key authentication wins over password when both are set.
func (r *RemoteSCP) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case r.params.key != "":
		signer, err := r.parseKey()
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case r.params.password != "":
		auth = append(auth, ssh.Password(r.params.password))
	default:
		return nil, ErrNoCredentials
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if r.params.knownHostsPath != "" {
		cb, err := knownhosts.New(r.params.knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            r.params.username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         r.params.timeout,
	}, nil
}

func (r *RemoteSCP) parseKey() (ssh.Signer, error) {
	if r.params.keyPassphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase([]byte(r.params.key), []byte(r.params.keyPassphrase))
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey([]byte(r.params.key))
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return signer, nil
}

// startKeepalive sends openssh keepalive requests until the returned
// stop function is called.
func (r *RemoteSCP) startKeepalive(client sshClient) func() {
	if r.params.keepalive <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.params.keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _, _ = client.SendRequest("keepalive@openssh.com", true, nil)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// runCommand executes cmd in its own session. Any non-zero exit status
// fails the command.
func runCommand(client sshClient, cmd string) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()
	return session.Run(cmd)
}

// upload streams the local file to the remote scp sink. The sink is
// started against the destination directory and the final name travels
// in the protocol's file header.
func (r *RemoteSCP) upload(client sshClient, localPath, finalPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat staged file: %w", err)
	}

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}

	if err := session.Start(fmt.Sprintf(`scp -qt "%s"`, path.Dir(finalPath))); err != nil {
		return fmt.Errorf("start remote scp: %w", err)
	}

	send := func() error {
		if err := readAck(stdout); err != nil {
			return err
		}
		header := fmt.Sprintf("C0644 %d %s\n", info.Size(), path.Base(finalPath))
		if _, err := io.WriteString(stdin, header); err != nil {
			return fmt.Errorf("write scp header: %w", err)
		}
		if err := readAck(stdout); err != nil {
			return err
		}
		if _, err := io.Copy(stdin, f); err != nil {
			return fmt.Errorf("stream file: %w", err)
		}
		if _, err := stdin.Write([]byte{0}); err != nil {
			return fmt.Errorf("finish scp stream: %w", err)
		}
		return readAck(stdout)
	}
	if err := send(); err != nil {
		stdin.Close()
		return err
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("close scp stream: %w", err)
	}
	return session.Wait()
}

// readAck consumes one scp acknowledgement byte. A non-zero byte
// signals an error followed by a newline-terminated message.
func readAck(r io.Reader) error {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read scp ack: %w", err)
	}
	if buf[0] == 0 {
		return nil
	}
	msg, _ := bufio.NewReader(r).ReadString('\n')
	return fmt.Errorf("remote scp error: %s", strings.TrimSpace(msg))
}

// permissionDenied matches authentication rejections and remote
// filesystem permission errors. Both are terminal for the query.
func permissionDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unable to authenticate")
}
