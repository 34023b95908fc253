package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/admins"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/applications"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/licensekeys"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/principals"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

// memStore is an in-memory stand-in for the schema, enforcing the same
// constraints the migrations declare.
type memStore struct {
	mu       sync.Mutex
	apps     map[string]models.Application
	keys     map[string]models.LicenseKey
	users    map[string]models.User
	admins   map[string]models.Admin
	sessions map[models.PrincipalClass]map[string]string

	// fail injects an error into the named repository call.
	fail map[string]error
	// calls counts repository calls by name.
	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		apps:   map[string]models.Application{},
		keys:   map[string]models.LicenseKey{},
		users:  map[string]models.User{},
		admins: map[string]models.Admin{},
		sessions: map[models.PrincipalClass]map[string]string{
			models.ClassUser:  {},
			models.ClassAdmin: {},
		},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

// enter locks the store and returns the injected error for op, if any.
func (m *memStore) enter(op string) error {
	m.mu.Lock()
	m.calls[op]++
	return m.fail[op]
}

func (m *memStore) setFail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) keyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) sessionCount(class models.PrincipalClass) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[class])
}

func (m *memStore) user(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

type memApps struct{ s *memStore }

func (r memApps) Create(_ context.Context, app *models.Application) error {
	if err := r.s.enter("apps.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.apps[app.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.s.apps[app.ID] = *app
	return nil
}

func (r memApps) Exists(_ context.Context, id string) (bool, error) {
	if err := r.s.enter("apps.Exists"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	_, ok := r.s.apps[id]
	return ok, nil
}

type memKeys struct{ s *memStore }

func (r memKeys) Create(_ context.Context, key *models.LicenseKey) error {
	if err := r.s.enter("keys.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.apps[key.ApplicationID]; !ok {
		return common.ErrorInvalidApplication
	}
	r.s.keys[key.ID] = *key
	return nil
}

func (r memKeys) Find(_ context.Context, id string) (*models.LicenseKey, error) {
	if err := r.s.enter("keys.Find"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &k, nil
}

func (r memKeys) Delete(_ context.Context, id string) error {
	if err := r.s.enter("keys.Delete"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	delete(r.s.keys, id)
	return nil
}

func (r memKeys) Consume(_ context.Context, id string) (string, error) {
	if err := r.s.enter("keys.Consume"); err != nil {
		r.s.mu.Unlock()
		return "", err
	}
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	delete(r.s.keys, id)
	return k.ApplicationID, nil
}

func (r memKeys) ListByApplication(_ context.Context, appID string) ([]models.LicenseKey, error) {
	if err := r.s.enter("keys.List"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make([]models.LicenseKey, 0)
	for _, k := range r.s.keys {
		if k.ApplicationID == appID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	if err := r.s.enter("users.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if other.UserName == u.UserName {
			return common.ErrorAlreadyExists
		}
	}
	if _, ok := r.s.apps[u.ApplicationID]; !ok {
		return common.ErrorInvalidApplication
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := r.s.enter("users.GetByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) GetIDByUsername(_ context.Context, username string) (string, error) {
	if err := r.s.enter("users.GetIDByUsername"); err != nil {
		r.s.mu.Unlock()
		return "", err
	}
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.UserName == username {
			return u.ID, nil
		}
	}
	return "", common.ErrorNotFound
}

func (r memUsers) ListByApplication(_ context.Context, appID string) ([]models.UserSummary, error) {
	if err := r.s.enter("users.List"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make([]models.UserSummary, 0)
	for _, u := range r.s.users {
		if u.ApplicationID == appID {
			out = append(out, models.UserSummary{ID: u.ID, UserName: u.UserName})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	if err := r.s.enter("users.UpdatePassword"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	r.s.users[id] = u
	return nil
}

func (r memUsers) UpdateLastLoginIP(_ context.Context, id, ip string) error {
	if err := r.s.enter("users.UpdateLastLoginIP"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginIP = &ip
	r.s.users[id] = u
	return nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	if err := r.s.enter("users.Delete"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.users, id)
	for tok, owner := range r.s.sessions[models.ClassUser] {
		if owner == id {
			delete(r.s.sessions[models.ClassUser], tok)
		}
	}
	return nil
}

type memAdmins struct{ s *memStore }

func (r memAdmins) Create(_ context.Context, a *models.Admin) error {
	if err := r.s.enter("admins.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	for _, other := range r.s.admins {
		if other.UserName == a.UserName {
			return common.ErrorAlreadyExists
		}
	}
	if _, ok := r.s.apps[a.ApplicationID]; !ok {
		return common.ErrorInvalidApplication
	}
	r.s.admins[a.ID] = *a
	return nil
}

func (r memAdmins) GetByID(_ context.Context, id string) (*models.Admin, error) {
	if err := r.s.enter("admins.GetByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

type memPrincipals struct {
	s     *memStore
	class models.PrincipalClass
}

func (r memPrincipals) Credentials(_ context.Context, username string) (*models.Credentials, error) {
	if err := r.s.enter("principals.Credentials"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	if r.class == models.ClassAdmin {
		for _, a := range r.s.admins {
			if a.UserName == username {
				return &models.Credentials{PrincipalID: a.ID, PasswordHash: a.PasswordHash}, nil
			}
		}
		return nil, common.ErrorNotFound
	}
	for _, u := range r.s.users {
		if u.UserName == username {
			return &models.Credentials{PrincipalID: u.ID, PasswordHash: u.PasswordHash}, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memSessions struct {
	s     *memStore
	class models.PrincipalClass
}

func (r memSessions) Create(_ context.Context, token, principalID string) error {
	if err := r.s.enter("sessions.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	var owner bool
	if r.class == models.ClassAdmin {
		_, owner = r.s.admins[principalID]
	} else {
		_, owner = r.s.users[principalID]
	}
	if !owner {
		return common.ErrorNotFound
	}
	if _, dup := r.s.sessions[r.class][token]; dup {
		return common.ErrorAlreadyExists
	}
	r.s.sessions[r.class][token] = principalID
	return nil
}

func (r memSessions) Find(_ context.Context, token string) (string, error) {
	if err := r.s.enter("sessions.Find"); err != nil {
		r.s.mu.Unlock()
		return "", err
	}
	defer r.s.mu.Unlock()
	id, ok := r.s.sessions[r.class][token]
	if !ok {
		return "", common.ErrorNotFound
	}
	return id, nil
}

func (r memSessions) Delete(_ context.Context, token string) error {
	if err := r.s.enter("sessions.Delete"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	delete(r.s.sessions[r.class], token)
	return nil
}

func (r memSessions) DeleteByPrincipal(_ context.Context, principalID string) ([]string, error) {
	if err := r.s.enter("sessions.DeleteByPrincipal"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make([]string, 0)
	for tok, owner := range r.s.sessions[r.class] {
		if owner == principalID {
			out = append(out, tok)
			delete(r.s.sessions[r.class], tok)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Applications(dbx.DBTX) applications.Repository {
	return memApps{m.s}
}
func (m *fakeRepoManager) LicenseKeys(dbx.DBTX) licensekeys.Repository { return memKeys{m.s} }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return memUsers{m.s} }
func (m *fakeRepoManager) Admins(dbx.DBTX) admins.Repository           { return memAdmins{m.s} }
func (m *fakeRepoManager) Principals(_ dbx.DBTX, c models.PrincipalClass) principals.Repository {
	return memPrincipals{m.s, c}
}
func (m *fakeRepoManager) Sessions(_ dbx.DBTX, c models.PrincipalClass) sessions.Repository {
	return memSessions{m.s, c}
}

// fakeCache is a map-backed SessionCache with the same revocation rules as
// the Redis adapter.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	revoked map[string]bool
	getErr  error
	setErr  error
	delErr  error
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}, revoked: map[string]bool{}}
}

func cacheKey(class models.PrincipalClass, token string) string { return class.String() + ":" + token }

func (c *fakeCache) Get(_ context.Context, class models.PrincipalClass, token string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	id, ok := c.entries[cacheKey(class, token)]
	if ok {
		c.hits++
	}
	return id, ok, nil
}

func (c *fakeCache) Set(_ context.Context, class models.PrincipalClass, token, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	key := cacheKey(class, token)
	if _, ok := c.entries[key]; ok || c.revoked[key] {
		return nil
	}
	c.entries[key] = id
	return nil
}

func (c *fakeCache) Delete(_ context.Context, class models.PrincipalClass, tokens ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	for _, t := range tokens {
		delete(c.entries, cacheKey(class, t))
		c.revoked[cacheKey(class, t)] = true
	}
	return nil
}

func (c *fakeCache) has(class models.PrincipalClass, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[cacheKey(class, token)]
	return ok
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errBoom }
func (failingHasher) Verify(string, string) bool  { return false }

// testEnv wires the services over memStore and a sqlmock database that only
// sees transaction boundaries.
type testEnv struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	store    *memStore
	identity *IdentityStore
	sessions *SessionRegistry
	gate     *Gate
	svc      *RegistrationService
}

func newTestEnv(t *testing.T, cfg *config.Config, cache SessionCache) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if cfg == nil {
		cfg = &config.Config{}
	}

	store := newMemStore()
	rm := &fakeRepoManager{s: store}

	identity, err := NewIdentityStore(db, rm, cryptox.NewBcryptHasher(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewIdentityStore error: %v", err)
	}
	var sc SessionCache
	if cache != nil {
		sc = cache
	}
	reg := NewSessionRegistry(db, rm, sc, nil)
	gate := NewGate(reg)

	return &testEnv{
		db:       db,
		mock:     mock,
		store:    store,
		identity: identity,
		sessions: reg,
		gate:     gate,
		svc:      NewRegistrationService(db, identity, reg, gate, cfg, nil),
	}
}

// expectTx queues one committed transaction.
func (e *testEnv) expectTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

// expectRollback queues one rolled back transaction.
func (e *testEnv) expectRollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}

// seedAdmin creates an application and an admin for it and logs the admin in.
func (e *testEnv) seedAdmin(t *testing.T, appName string) (appID, adminToken string) {
	t.Helper()
	ctx := context.Background()
	appID, err := e.identity.CreateApplication(ctx, appName)
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if _, err := e.identity.CreateAdmin(ctx, "admin-"+appName, "adminpw", appID, "admin@"+appName); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	adminToken, err = e.svc.AdminLogin(ctx, "admin-"+appName, "adminpw")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	return appID, adminToken
}

// racingCache runs during right before the first fill of token, that is
// after the registry has read the session row but before it caches it.
type racingCache struct {
	*fakeCache
	token  string
	during func()
	fired  bool
}

func (c *racingCache) Set(ctx context.Context, class models.PrincipalClass, token, id string) error {
	if token == c.token && !c.fired {
		c.fired = true
		c.during()
	}
	return c.fakeCache.Set(ctx, class, token, id)
}
