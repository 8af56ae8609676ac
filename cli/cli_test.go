package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/people/cli"
)

type harness struct {
	t       *testing.T
	dir     string
	config  string
	pushURL string
	stdin   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, dir: t.TempDir()}
}

func (h *harness) writeConfig() {
	h.t.Helper()
	body := fmt.Sprintf(`log:
  level: error
storage: file
data:
  dir: %s
sql:
  driver: sqlite3
  name: %s
  maxOpenConns: 1
orm:
  driver: sqlite3
  name: %s
metrics:
  pushURL: %q
  job: people-test
`,
		filepath.Join(h.dir, "data"),
		filepath.Join(h.dir, "data", "people.db"),
		filepath.Join(h.dir, "data", "people_orm.db"),
		h.pushURL,
	)
	h.config = filepath.Join(h.dir, "people.yaml")
	require.NoError(h.t, os.WriteFile(h.config, []byte(body), 0o644))
}

// run executes the command line as the given account.
func (h *harness) run(user, password string, args ...string) (int, string, string) {
	h.t.Helper()
	if h.config == "" {
		h.writeConfig()
	}
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", h.config, "-u", user, "-p", password}, args...)
	code := cli.Run(context.Background(), full, strings.NewReader(h.stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) admin(args ...string) (int, string, string) {
	return h.run("zoeadmin", "1010", args...)
}

func TestCLI_FileLifecycle(t *testing.T) {
	h := newHarness(t)
	photo := filepath.Join(h.dir, "ann.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG"), 0o644))

	code, out, errOut := h.admin("insert", "12345678", "--name", "Ann", "--birth", "1990-05-17", "--photo", photo)
	require.Equal(t, cli.ExitOK, code, errOut)
	assert.Equal(t, "inserted 12345678Z\n", out)
	assert.FileExists(t, filepath.Join(h.dir, "data", "file", "people.tsv"))
	assert.FileExists(t, filepath.Join(h.dir, "data", "file", "photos", "12345678Z.png"))

	photoOut := filepath.Join(h.dir, "out.png")
	code, out, _ = h.run("zoef", "1234", "read", "12345678z", "--photo-out", photoOut)
	require.Equal(t, cli.ExitOK, code)
	assert.Contains(t, out, "nif: 12345678Z")
	assert.Contains(t, out, "name: Ann")
	assert.Contains(t, out, "photo: 4 bytes")
	got, err := os.ReadFile(photoOut)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), got)

	code, _, errOut = h.admin("insert", "12345678Z", "--name", "Other")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "already registered")

	code, _, _ = h.admin("update", "12345678Z", "--name", "Anna")
	require.Equal(t, cli.ExitOK, code)

	code, out, _ = h.admin("list")
	require.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "Person{NIF=12345678Z, Name=Anna, DateOfBirth=, Photo=false}\n", out)

	code, out, _ = h.admin("count")
	require.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "1\n", out)

	code, _, _ = h.admin("delete", "12345678Z")
	require.Equal(t, cli.ExitOK, code)

	code, _, errOut = h.admin("read", "12345678Z")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "not registered")
}

func TestCLI_UserCannotMutate(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("zoef", "1234", "insert", "12345678Z")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "not allowed")

	code, out, _ := h.run("zoef", "1234", "actions")
	require.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "zoef (user)\n  read\n  list\n  count\n", out)
}

func TestCLI_DomainFailures(t *testing.T) {
	h := newHarness(t)

	code, _, errOut := h.run("zoeadmin", "wrong", "list")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "invalid username or password")

	code, _, errOut = h.admin("-s", "tape", "list")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "unknown storage")

	code, _, errOut = h.admin("insert", "12345678Z", "--email", "nope")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Contains(t, errOut, "invalid field")

	code, _, _ = h.admin("insert", "12345678Z", "--birth", "17/05/1990")
	assert.Equal(t, cli.ExitDomain, code)

	code, _, _ = h.admin("delete-all")
	assert.Equal(t, cli.ExitDomain, code)

	code, _, _ = h.admin("read")
	assert.Equal(t, cli.ExitDomain, code)
}

func TestCLI_FatalOnMissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "list"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, cli.ExitFatal, code)
}

func TestCLI_StorageKinds(t *testing.T) {
	for _, kind := range []string{"list", "map", "serial", "sql", "orm"} {
		t.Run(kind, func(t *testing.T) {
			h := newHarness(t)
			code, _, errOut := h.admin("-s", kind, "insert", "87654321X", "--name", "Bea")
			require.Equal(t, cli.ExitOK, code, errOut)

			code, out, _ := h.admin("-s", kind, "count")
			require.Equal(t, cli.ExitOK, code)
			if kind == "list" || kind == "map" {
				// memory backends do not outlive the process; shell keeps them
				assert.Equal(t, "0\n", out)
				return
			}
			assert.Equal(t, "1\n", out)

			code, _, _ = h.admin("-s", kind, "delete-all", "--yes")
			require.Equal(t, cli.ExitOK, code)
			code, out, _ = h.admin("-s", kind, "list")
			require.Equal(t, cli.ExitOK, code)
			assert.Equal(t, "no people stored\n", out)
		})
	}
}

func TestCLI_ShellKeepsMemorySession(t *testing.T) {
	h := newHarness(t)
	h.stdin = `insert 12345678 --name Ann --birth 1990-05-17

# comments are skipped
read 12345678Z
read 87654321X
insert 12345678Z --name Other
count
exit
count
`
	code, out, errOut := h.admin("-s", "list", "shell")
	require.Equal(t, cli.ExitOK, code, errOut)
	assert.Contains(t, out, "inserted 12345678Z\n")
	assert.Contains(t, out, "nif: 12345678Z")
	assert.Contains(t, out, "name: Ann")
	assert.True(t, strings.HasSuffix(out, "\n1\n"), out)
	assert.Equal(t, 1, strings.Count(out, "\n1\n"), "count after exit must not run")
	assert.Contains(t, errOut, "warning: ")
	assert.Contains(t, errOut, "not registered")
	assert.Contains(t, errOut, "already registered")
}

func TestCLI_ShellWarnsAndContinues(t *testing.T) {
	h := newHarness(t)
	h.stdin = "frobnicate\nread\ndelete-all\ninsert 87654321X --email nope\ncount\n"

	code, out, errOut := h.admin("-s", "map", "shell")
	require.Equal(t, cli.ExitOK, code, errOut)
	assert.Equal(t, "0\n", out)
	assert.Equal(t, 4, strings.Count(errOut, "warning: "), errOut)
}

func TestCLI_ShellNeedsLogin(t *testing.T) {
	h := newHarness(t)
	h.stdin = "count\n"

	code, out, errOut := h.run("zoeadmin", "wrong", "-s", "list", "shell")
	assert.Equal(t, cli.ExitDomain, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "invalid username or password")
}

func TestCLI_MigrateAndHashPassword(t *testing.T) {
	h := newHarness(t)

	code, out, _ := h.admin("migrate")
	require.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "schema version 5 (dirty: false)\n", out)

	code, out, _ = h.admin("hash-password", "s3cret")
	require.Equal(t, cli.ExitOK, code)
	assert.True(t, strings.HasPrefix(out, "$2a$"), out)

	code, _, errOut := h.admin("hash-password", "s3cret", "--account", "zoef")
	require.Equal(t, cli.ExitOK, code, errOut)

	code, _, _ = h.run("zoef", "1234", "actions")
	assert.Equal(t, cli.ExitDomain, code)
	code, _, _ = h.run("zoef", "s3cret", "actions")
	assert.Equal(t, cli.ExitOK, code)

	code, _, _ = h.run("zoef", "s3cret", "hash-password", "x", "--account", "zoeadmin", "--role", "admin")
	assert.Equal(t, cli.ExitDomain, code)

	code, _, _ = h.admin("hash-password", "x", "--account", "ghost")
	assert.Equal(t, cli.ExitDomain, code)
}

func TestCLI_PushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/metrics/job/people-test") {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newHarness(t)
	h.pushURL = srv.URL
	code, _, _ := h.admin("-s", "map", "count")
	require.Equal(t, cli.ExitOK, code)
	assert.Equal(t, int32(1), pushes.Load())
}
