package cli

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pipesync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"upload", "download", "dump", "status", "run",
		"update", "verify", "test", "wipe", "version",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"node", "jwt", "verbose", "logformat", "skip-tls-verification"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "flag --%s should exist", name)
	}

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	assert.Equal(t, "v", verboseFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{
		"scheduler-id", "scheduler-image-tag", "scheduler-node",
		"scheduler-zero-runs", "scheduler-poll-frequency",
		"print-scheduler-log", "custom-scheduler", "keep-scheduler",
	} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "flag --%s should exist", name)
	}

	assert.Equal(t, "scheduler", runCmd.Flags().Lookup("scheduler-id").DefValue)
	assert.Equal(t, "5", runCmd.Flags().Lookup("scheduler-zero-runs").DefValue)
	assert.Equal(t, "5000", runCmd.Flags().Lookup("scheduler-poll-frequency").DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	runsFlag := testCmd.Flags().Lookup("runs")
	require.NotNil(t, runsFlag)
	assert.Equal(t, "1", runsFlag.DefValue)

	profileFlag := testCmd.Flags().Lookup("profile")
	require.NotNil(t, profileFlag)
	assert.Equal(t, "test", profileFlag.DefValue)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "pipesync")
}

// configZip packs a name-to-content map the way the node serves its
// config.
func configZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func setupProject(t *testing.T, server *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	t.Setenv("NODE", server.URL)
	t.Setenv("JWT", "test-token")
	return dir
}

func TestStatusCommandInSync(t *testing.T) {
	pipeConfig := `{"_id": "orders"}`
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(configZip(t, map[string]string{"pipes/orders.conf.json": pipeConfig}))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := setupProject(t, server)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pipes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipes", "orders.conf.json"), []byte(pipeConfig), 0o644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"status"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "up-to-date")
}

func TestStatusCommandOutOfSync(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(configZip(t, map[string]string{"pipes/orders.conf.json": `{"_id": "orders"}`}))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	setupProject(t, server)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"status"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "pipes/orders.conf.json")
}

func TestDumpCommandWritesZip(t *testing.T) {
	zipData := configZip(t, map[string]string{"pipes/orders.conf.json": `{"_id": "orders"}`})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write(zipData)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := setupProject(t, server)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"dump"})

	require.NoError(t, cmd.Execute())
	written, err := os.ReadFile(filepath.Join(dir, dumpFileName))
	require.NoError(t, err)
	assert.Equal(t, zipData, written)
}

func TestDownloadCommandReplacesLocalConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/systems/scheduler", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(configZip(t, map[string]string{"pipes/orders.conf.json": `{"_id": "orders"}`}))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := setupProject(t, server)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pipes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipes", "stale.conf.json"), []byte(`{}`), 0o644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"download"})

	require.NoError(t, cmd.Execute())
	assert.FileExists(t, filepath.Join(dir, "pipes", "orders.conf.json"))
	assert.NoFileExists(t, filepath.Join(dir, "pipes", "stale.conf.json"))
}

func TestRunCommandTimeoutIsARunFailure(t *testing.T) {
	started := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/systems/scheduler/proxy/", func(w http.ResponseWriter, r *http.Request) {
		state := "init"
		if started {
			state = "running"
		}
		_, _ = w.Write([]byte(`{"state": "` + state + `"}`))
	})
	mux.HandleFunc("POST /api/systems/scheduler/proxy/start", func(w http.ResponseWriter, r *http.Request) {
		started = true
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	setupProject(t, server)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"run", "--custom-scheduler",
		"--scheduler-poll-frequency", "1",
		"--scheduler-request-timeout", "1",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "scheduler run failed")
}

func TestUploadCommandRequiresProfile(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()
	setupProject(t, server)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"upload"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "test-env.json")
}
