package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/pkg/types"
)

func TestPickLocalWhenNoHostnameAnywhere(t *testing.T) {
	svc := Pick(&types.Query{}, &types.UserSettings{}, Options{})

	assert.IsType(t, &LocalCopy{}, svc)
	assert.Equal(t, "local", svc.Mode())
}

func TestPickUsesSettingsHostname(t *testing.T) {
	settings := &types.UserSettings{SSHHostname: "hostA", SSHUsername: "alice", SSHPassword: "pw"}

	svc := Pick(&types.Query{}, settings, Options{})

	remote, ok := svc.(*RemoteSCP)
	require.True(t, ok)
	assert.Equal(t, "hostA", remote.host)
	assert.Equal(t, "scp", remote.Mode())
}

func TestPickQueryHostnameOverridesSettings(t *testing.T) {
	q := &types.Query{SSHHostname: "hostB"}
	settings := &types.UserSettings{SSHHostname: "hostA", SSHUsername: "alice", SSHPassword: "pw"}

	svc := Pick(q, settings, Options{Host: "hostDefault"})

	remote, ok := svc.(*RemoteSCP)
	require.True(t, ok)
	assert.Equal(t, "hostB", remote.host)
	// Credentials still come from the user's settings.
	assert.Equal(t, "alice", remote.params.username)
	assert.Equal(t, "pw", remote.params.password)
	assert.Equal(t, 22, remote.params.port)
}

func TestPickFallsBackToConfiguredDefaultHost(t *testing.T) {
	svc := Pick(&types.Query{}, nil, Options{Host: "hostDefault", Username: "svc", Password: "pw"})

	remote, ok := svc.(*RemoteSCP)
	require.True(t, ok)
	assert.Equal(t, "hostDefault", remote.host)
	assert.Equal(t, "svc", remote.params.username)
}

func TestResolveSSHUserBlockWinsWhenUsernameSet(t *testing.T) {
	opts := Options{
		Port:          22,
		Username:      "svc",
		Password:      "svc-pw",
		Key:           "svc-key",
		KeyPassphrase: "svc-phrase",
	}
	settings := &types.UserSettings{
		SSHUsername: "alice",
		SSHPassword: "alice-pw",
	}

	p := resolveSSH(settings, opts)

	assert.Equal(t, "alice", p.username)
	assert.Equal(t, "alice-pw", p.password)
	// The user block replaces the whole credential set, so the process
	// default key does not leak into a user-credential connection.
	assert.Empty(t, p.key)
	assert.Empty(t, p.keyPassphrase)
}

func TestResolveSSHDefaultsWhenNoUserUsername(t *testing.T) {
	opts := Options{Port: 2022, Username: "svc", Key: "svc-key"}

	p := resolveSSH(&types.UserSettings{SSHPassword: "ignored-without-username"}, opts)

	assert.Equal(t, "svc", p.username)
	assert.Equal(t, "svc-key", p.key)
	assert.Equal(t, 2022, p.port)
}

func TestResolveSSHPortPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		settings *types.UserSettings
		opts     Options
		want     int
	}{
		{"settings port wins", &types.UserSettings{SSHPort: 2222}, Options{Port: 22}, 2222},
		{"options port when settings unset", &types.UserSettings{}, Options{Port: 2022}, 2022},
		{"default 22 when nothing set", nil, Options{}, 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSSH(tt.settings, tt.opts).port)
		})
	}
}

func TestResolveSSHTimeoutDefaults(t *testing.T) {
	p := resolveSSH(nil, Options{})

	assert.Equal(t, 30*time.Second, p.timeout)
	assert.Equal(t, 30*time.Second, p.keepalive)
}

func TestLocalCopyDeliver(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staged", "query_1.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("id,name\n1,a\n"), 0o640))

	stamp := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, stamp, stamp))

	dst := filepath.Join(dir, "exports", "nested", "query_1.csv")
	err := NewLocalCopy().Deliver(context.Background(), Request{LocalPath: src, FinalPath: dst})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(stamp))
}

func TestLocalCopyDeliverOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.csv")
	dst := filepath.Join(dir, "out", "final.csv")
	require.NoError(t, os.WriteFile(src, []byte("fresh"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("stale content, longer"), 0o644))

	err := NewLocalCopy().Deliver(context.Background(), Request{LocalPath: src, FinalPath: dst})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestLocalCopyDeliverMissingSource(t *testing.T) {
	dir := t.TempDir()

	err := NewLocalCopy().Deliver(context.Background(), Request{
		LocalPath: filepath.Join(dir, "missing.csv"),
		FinalPath: filepath.Join(dir, "out.csv"),
	})

	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}
