package server

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubManager struct {
	*repomanager.PostgresRepositoryManager
	migrateErr error
	migrated   int
}

func (m *stubManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated++
	return m.migrateErr
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.PasswordHasher = "bcrypt"
	c.BcryptCost = 4
	c.ShutdownTimeout = time.Second
	return c
}

// withSeams swaps the package seams for an sqlmock DB and a stub manager.
func withSeams(t *testing.T, migrateErr error) (*stubManager, *bool) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	oldOut, oldOpen, oldRM := logOutput, openDB, newRepoManager
	t.Cleanup(func() { logOutput, openDB, newRepoManager = oldOut, oldOpen, oldRM })

	opened := false
	rm := &stubManager{PostgresRepositoryManager: repomanager.NewPostgresRepositoryManager(), migrateErr: migrateErr}
	logOutput = io.Discard
	openDB = func(string) (*sql.DB, error) {
		opened = true
		return db, nil
	}
	newRepoManager = func() repomanager.RepositoryManager { return rm }
	return rm, &opened
}

func TestNewApp_WiresHandler(t *testing.T) {
	rm, _ := withSeams(t, nil)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	assert.Equal(t, 1, rm.migrated)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_MigrationError(t *testing.T) {
	withSeams(t, errors.New("boom"))

	app, err := NewApp(context.Background(), testConfig())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "migrations error")
}

func TestNewApp_InvalidSettingsFailBeforeDB(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"log level", func(c *config.Config) { c.LogLevel = "loud" }, "logger init error"},
		{"hasher", func(c *config.Config) { c.PasswordHasher = "md5" }, "password hasher init error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opened := withSeams(t, nil)
			c := testConfig()
			tt.mutate(c)

			_, err := NewApp(context.Background(), c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, *opened)
		})
	}
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	withSeams(t, nil)
	c := testConfig()
	c.RedisURL = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app, err := NewApp(ctx, c)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "redis")
}

func TestRun_StopsOnCancel(t *testing.T) {
	withSeams(t, nil)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	withSeams(t, nil)
	c := testConfig()
	c.EndpointAddrHTTP = "256.0.0.1:bad"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	assert.Error(t, app.Run(context.Background()))
}
