package updater

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// release serves a manifest and its files like a static update folder.
type release struct {
	mu       sync.Mutex
	manifest Manifest
	files    map[string][]byte
	requests []string
}

func newRelease(version string, files map[string][]byte) *release {
	r := &release{
		manifest: Manifest{Version: version, Files: make(map[string]string), Executable: Executable(consoleBase)},
		files:    files,
	}

	for name, body := range files {
		checksum := sha512.Sum512(body)
		r.manifest.Files[name] = base64.StdEncoding.EncodeToString(checksum[:])
	}

	return r
}

func (r *release) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := filepath.Base(req.URL.Path)
	r.requests = append(r.requests, name)

	if name == VersionFilename {
		data, err := yaml.Marshal(r.manifest)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		_, _ = w.Write(data)

		return
	}

	body, ok := r.files[name]
	if !ok {
		http.NotFound(w, req)

		return
	}

	_, _ = w.Write(body)
}

// terminations records which process names the updater asked to kill.
type terminations struct {
	mu    sync.Mutex
	calls [][]string
}

func (t *terminations) terminate(_ context.Context, names []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, append([]string(nil), names...))

	return nil
}

func (t *terminations) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.calls)
}

func fixedVersion(v string) VersionFunc {
	return func(context.Context, string) string { return v }
}

// TestUpdate_FreshInstall downloads every file when nothing is installed.
func TestUpdate_FreshInstall(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		Executable(consoleBase): []byte("console-v2"),
		Executable(ctlBase):     []byte("ctl-v2"),
	}
	server := httptest.NewServer(newRelease("2.0.0", files))
	defer server.Close()

	dir := t.TempDir()
	killer := new(terminations)

	u, err := New(server.URL+"/releases/", dir, WithTerminate(killer.terminate), WithVersionFunc(fixedVersion("")))
	require.NoError(t, err)

	updated, err := u.Update(context.Background())
	require.NoError(t, err)
	require.True(t, updated)
	require.Equal(t, 1, killer.count())

	for name, body := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, body, got)
	}

	_, err = os.Stat(filepath.Join(dir, MarkerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdate_UpToDate leaves a matching installation alone.
func TestUpdate_UpToDate(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{Executable(consoleBase): []byte("console-v2")}
	server := httptest.NewServer(newRelease("2.0.0", files))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Executable(consoleBase)), files[Executable(consoleBase)], 0o600))

	killer := new(terminations)

	u, err := New(server.URL, dir, WithTerminate(killer.terminate), WithVersionFunc(fixedVersion("2.0.0")))
	require.NoError(t, err)

	updated, err := u.Update(context.Background())
	require.NoError(t, err)
	require.False(t, updated)
	require.Zero(t, killer.count())
}

// TestUpdate_ChecksumDrift replaces only the file that differs.
func TestUpdate_ChecksumDrift(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		Executable(consoleBase): []byte("console-v2"),
		Executable(ctlBase):     []byte("ctl-v2"),
	}
	rel := newRelease("2.0.0", files)
	server := httptest.NewServer(rel)
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Executable(consoleBase)), []byte("console-v2"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, Executable(ctlBase)), []byte("tampered"), 0o600))

	u, err := New(server.URL, dir, WithTerminate(new(terminations).terminate), WithVersionFunc(fixedVersion("2.0.0")))
	require.NoError(t, err)

	updated, err := u.Update(context.Background())
	require.NoError(t, err)
	require.True(t, updated)

	got, err := os.ReadFile(filepath.Join(dir, Executable(ctlBase)))
	require.NoError(t, err)
	require.Equal(t, []byte("ctl-v2"), got)

	rel.mu.Lock()
	defer rel.mu.Unlock()
	require.NotContains(t, rel.requests, Executable(consoleBase))
}

// TestUpdate_BadChecksumKeepsTarget refuses a download that does not match the manifest.
func TestUpdate_BadChecksumKeepsTarget(t *testing.T) {
	t.Parallel()

	name := Executable(consoleBase)
	rel := newRelease("2.0.0", map[string][]byte{name: []byte("console-v2")})
	rel.files[name] = []byte("corrupted in transit")

	server := httptest.NewServer(rel)
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("console-v1"), 0o600))

	u, err := New(server.URL, dir, WithTerminate(new(terminations).terminate), WithVersionFunc(fixedVersion("1.0.0")))
	require.NoError(t, err)

	_, err = u.Update(context.Background())
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, []byte("console-v1"), got)
}

// TestUpdate_FreshMarkerBlocks refuses to run next to another updater.
func TestUpdate_FreshMarkerBlocks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFilename), nil, 0o600))

	u, err := New("http://127.0.0.1:1/", dir, WithTerminate(new(terminations).terminate))
	require.NoError(t, err)

	_, err = u.Update(context.Background())
	require.ErrorIs(t, err, errUpdaterAlreadyRunning)

	stale := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(filepath.Join(dir, MarkerFilename), stale, stale))

	killer := new(terminations)
	unlock, err := acquireMarker(context.Background(), dir, killer.terminate)
	require.NoError(t, err)
	require.Equal(t, 1, killer.count())

	unlock()

	_, err = os.Stat(filepath.Join(dir, MarkerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdate_MissingManifest reports an HTTP failure.
func TestUpdate_MissingManifest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	u, err := New(server.URL, t.TempDir(), WithTerminate(new(terminations).terminate))
	require.NoError(t, err)

	_, err = u.Update(context.Background())
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestRestart launches the console from the installation directory.
func TestRestart(t *testing.T) {
	t.Parallel()

	var started string

	dir := t.TempDir()

	u, err := New("http://updates.local/", dir, WithStart(func(_ context.Context, path string) error {
		started = path

		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, u.Restart(context.Background()))
	require.Equal(t, filepath.Join(dir, Executable(consoleBase)), started)
}

// TestNew_RequiresFolder rejects an empty or relative update folder.
func TestNew_RequiresFolder(t *testing.T) {
	t.Parallel()

	_, err := New("", ".")
	require.ErrorIs(t, err, errNoUpdateFolder)

	_, err = New("releases", ".")
	require.Error(t, err)
}

// TestParseVersionFromOutput handles the version subcommand format.
func TestParseVersionFromOutput(t *testing.T) {
	t.Parallel()

	v, err := parseVersionFromOutput("version: 1.2.3, commit: abc123, built at: 2026-01-01\n")
	require.NoError(t, err)
	require.Equal(t, "1.2.3", v)

	_, err = parseVersionFromOutput("solar-console 1.2.3")
	require.ErrorIs(t, err, errInvalidVersionOutput)
}

// TestManifest_AddAndChecksum round-trips a file checksum through the manifest.
func TestManifest_AddAndChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), Executable(consoleBase))
	require.NoError(t, os.WriteFile(path, []byte("console"), 0o600))

	manifest := NewManifest()
	require.NoError(t, manifest.Add(path))

	checksum, err := manifest.Checksum(Executable(consoleBase))
	require.NoError(t, err)

	expected := sha512.Sum512([]byte("console"))
	require.Equal(t, expected[:], checksum)

	_, err = manifest.Checksum("missing")
	require.ErrorIs(t, err, errNoChecksum)
}
