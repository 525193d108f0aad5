/*
Package transfer delivers materialised export files to their final
destination.

Two delivery modes exist and the choice is made per query. An SSH
hostname found on the query wins over one in the user's settings, which
wins over the process-wide default; if none is configured the export
stays on the local filesystem.

	Query.SSHHostname > UserSettings.SSHHostname > config default > local copy

# Local Copy

LocalCopy creates the destination directory and copies the staged file,
preserving its mode and modification time. It is single-shot: local
filesystem errors are not retried.

# Remote SCP

RemoteSCP speaks the classic SCP source protocol over an SSH connection
from golang.org/x/crypto/ssh. One attempt is a full pipeline; failure
at any step fails the whole attempt:

	dial ──> mkdir -p "<dir>" ──> scp stream ──> ls -l "<path>" ──> chmod 644 "<path>"

Attempts run up to three times with a fixed two second pause between
them. Two failure classes never retry:

  - permission denied, whether an authentication rejection or a remote
    filesystem error; surfaced as *PermissionError
  - missing credentials (ErrNoCredentials)

There is no fallback from remote to local delivery. A query configured
for a remote destination either lands there or fails.

# Credential Resolution

The user's credential block (username, password, key, passphrase)
applies whenever UserSettings.SSHUsername is set; otherwise the process
defaults apply. The port falls back independently: settings port, then
configured default, then 22. Key authentication is preferred when both
a key and a password are present.

Host keys are verified against a known_hosts file when one is
configured. Without one the host key is accepted blindly, which the
serve command warns about at startup.

# Secrets

Passwords, private keys and passphrases never appear in log fields or
error strings produced by this package.
*/
package transfer
