package cli_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-brief-portal/internal/cli"
	"github.com/jrsteele09/go-brief-portal/internal/fakebackend"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend    *fakebackend.Backend
	configPath string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	for _, env := range []string{"API_URL", "ENV", "LOG_LEVEL", "STORAGE", "SQLITE_PATH", "PROFILE", "CONFIG_FILE"} {
		t.Setenv(env, "")
	}

	backend := fakebackend.New(fakebackend.WithLogger(zerolog.Nop()))
	require.NoError(t, backend.Seed())
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "briefctl.yaml")
	contents := strings.Join([]string{
		"API_URL: " + srv.URL + fakebackend.APIPrefix,
		"ENV: TEST",
		"LOG_LEVEL: disabled",
		"STORAGE: sqlite",
		"SQLITE_PATH: " + filepath.Join(dir, "session", "session.db"),
		"UNREAD_POLL_INTERVAL: 20ms",
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o600))

	return &testFixture{backend: backend, configPath: configPath}
}

func (f *testFixture) runWith(ctx context.Context, t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCmd(cli.WithStdin(strings.NewReader(stdin)))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (f *testFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return f.runWith(context.Background(), t, "", args...)
}

func (f *testFixture) login(t *testing.T, email, password string) {
	t.Helper()
	out, err := f.run(t, "login", "--email", email, "--password", password)
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as")
}

func TestLoginPersistsAcrossCommands(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.run(t, "whoami")
	require.ErrorContains(t, err, "not signed in")

	out, err := f.runWith(context.Background(), t, "admin123\n", "login", "--email", "admin@agency.test")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Agency Admin")

	out, err = f.run(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Agency Admin")
	require.Contains(t, out, "role: ADMIN")

	_, err = f.run(t, "logout")
	require.NoError(t, err)
	_, err = f.run(t, "whoami")
	require.ErrorContains(t, err, "not signed in")
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.run(t, "login", "--email", "admin@agency.test", "--password", "wrong")
	require.EqualError(t, err, "Invalid email or password")
}

func TestRoleGatedCommands(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, "jane@acme.test", "client123")

	_, err := f.run(t, "briefs", "status", "some-id", "completed")
	require.ErrorContains(t, err, "needs the ADMIN role")
	_, err = f.run(t, "briefs", "stats")
	require.ErrorContains(t, err, "needs the ADMIN role")
	require.Zero(t, f.backend.Calls("PUT /briefs/{id}"))

	out, err := f.run(t, "briefs", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Acme Resort Website")
}

func TestAdminStatusChange(t *testing.T) {
	f := setupTestFixture(t)
	client, err := f.backend.AddUser("bob@builder.test", "bob12345", "Bob Builder", model.RoleClient, nil)
	require.NoError(t, err)
	brief, err := f.backend.AddBrief(client.ID, model.CreateBriefRequest{
		ProjectName:        "Bob's Yard",
		ProjectDescription: "A site for the yard",
		WebsiteType:        "Business",
		BrandName:          "Bob",
		MainColor:          "#ffaa00",
		FontPreference:     "Sans",
	})
	require.NoError(t, err)
	f.login(t, "admin@agency.test", "admin123")

	out, err := f.run(t, "briefs", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Bob's Yard")
	require.Contains(t, out, "Bob Builder")

	out, err = f.run(t, "briefs", "status", brief.ID, "in-progress")
	require.NoError(t, err)
	require.Contains(t, out, "Brief status updated successfully")
	require.Contains(t, out, "Bob's Yard is now IN_PROGRESS")

	out, err = f.run(t, "briefs", "show", brief.ID)
	require.NoError(t, err)
	require.Contains(t, out, "IN_PROGRESS")
	require.Contains(t, out, "Bob Builder")

	_, err = f.run(t, "briefs", "status", brief.ID, "archived")
	require.ErrorContains(t, err, `unknown status "archived"`)

	out, err = f.run(t, "briefs", "stats")
	require.NoError(t, err)
	require.Contains(t, out, "TOTAL")
}

func TestClientCreatesBriefFromYAML(t *testing.T) {
	f := setupTestFixture(t)
	path := filepath.Join(t.TempDir(), "brief.yaml")
	contents := `projectName: Harbour Cafe
projectDescription: Menu and bookings
websiteType: Restaurant
brandName: Harbour
mainColor: "#003366"
fontPreference: Serif
moodTheme: [calm, coastal]
referenceLinks: []
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	f.login(t, "admin@agency.test", "admin123")
	_, err := f.run(t, "briefs", "create", "-f", path)
	require.ErrorContains(t, err, "needs the CLIENT role")

	f.login(t, "jane@acme.test", "client123")
	out, err := f.run(t, "briefs", "create", "-f", path)
	require.NoError(t, err)
	require.Contains(t, out, "Brief created successfully")

	out, err = f.run(t, "briefs", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Harbour Cafe")
}

func TestDiscussionsAndNotifications(t *testing.T) {
	f := setupTestFixture(t)
	client, err := f.backend.AddUser("bob@builder.test", "bob12345", "Bob Builder", model.RoleClient, nil)
	require.NoError(t, err)
	brief, err := f.backend.AddBrief(client.ID, model.CreateBriefRequest{ProjectName: "Bob's Yard", MainColor: "#ffaa00"})
	require.NoError(t, err)

	f.login(t, "admin@agency.test", "admin123")
	_, err = f.run(t, "discussions", "post", brief.ID, "Kickoff", "on", "Monday")
	require.NoError(t, err)

	f.login(t, "bob@builder.test", "bob12345")
	out, err := f.run(t, "discussions", "list", brief.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Kickoff on Monday")
	require.Contains(t, out, "Agency Admin (agency)")

	out, err = f.run(t, "notifications", "unread")
	require.NoError(t, err)
	require.Equal(t, "1", strings.TrimSpace(out))

	_, err = f.run(t, "notifications", "read-all")
	require.NoError(t, err)
	out, err = f.run(t, "notifications", "unread")
	require.NoError(t, err)
	require.Equal(t, "0", strings.TrimSpace(out))
}

func TestNotificationsWatchStopsWithContext(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, "jane@acme.test", "client123")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out, err := f.runWith(ctx, t, "", "notifications", "watch")
	require.NoError(t, err)
	require.Contains(t, out, "unread: 1")
	require.Equal(t, 1, strings.Count(out, "unread:"))
}

func TestThemePersists(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.run(t, "theme")
	require.NoError(t, err)
	require.Equal(t, "light", strings.TrimSpace(out))

	_, err = f.run(t, "theme", "dark")
	require.NoError(t, err)
	out, err = f.run(t, "theme")
	require.NoError(t, err)
	require.Equal(t, "dark", strings.TrimSpace(out))

	_, err = f.run(t, "theme", "sepia")
	require.ErrorContains(t, err, "unknown theme")
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.run(t, "health")
	require.NoError(t, err)
	require.Contains(t, out, "is healthy")

	f.backend.SetOffline(true)
	_, err = f.run(t, "health")
	require.ErrorContains(t, err, "is not healthy")
}
