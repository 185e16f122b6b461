package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

// memDB backs the in-memory store fakes. It mirrors the semantics of
// the Postgres repositories closely enough to exercise the full
// session lifecycle without a database.
type memDB struct {
	mu sync.Mutex

	userSeq  uint64
	users    map[uint64]*model.User
	roleSeq  uint64
	roles    map[uint64]model.Role
	junction map[uint64]map[uint64]bool

	sessions map[uuid.UUID]*model.Session
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uint64]*model.User{},
		roles:    map[uint64]model.Role{},
		junction: map[uint64]map[uint64]bool{},
		sessions: map[uuid.UUID]*model.Session{},
	}
}

func (db *memDB) rolesOf(userID uint64) []model.Role {
	var out []model.Role
	for rid := range db.junction[userID] {
		out = append(out, db.roles[rid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func copyUser(u *model.User) *model.User {
	cp := *u
	cp.Roles = append([]model.Role(nil), u.Roles...)
	return &cp
}

// ----- UserStore -----

type memUserStore struct{ db *memDB }

func (s *memUserStore) Create(_ context.Context, email, hash, name string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return nil, repository.ErrEmailExists
		}
	}
	s.db.userSeq++
	now := time.Now().UTC()
	u := &model.User{ID: s.db.userSeq, Email: email, Name: name, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	s.db.users[u.ID] = u
	return copyUser(u), nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.db.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *memUserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *memUserStore) GetWithRoles(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyUser(u)
	cp.Roles = s.db.rolesOf(id)
	return cp, nil
}

func (s *memUserStore) Update(_ context.Context, id uint64, upd model.UserUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	if upd.Locked != nil {
		u.Locked = *upd.Locked
	}
	if upd.FailedAttempts != nil {
		u.FailedAttempts = *upd.FailedAttempts
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memUserStore) ChangePassword(_ context.Context, id uint64, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) AssignRole(_ context.Context, userID, roleID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[userID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.db.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	held := s.db.junction[userID]
	if held == nil {
		held = map[uint64]bool{}
		s.db.junction[userID] = held
	}
	if held[roleID] {
		return repository.ErrRoleAssigned
	}
	held[roleID] = true
	return nil
}

func (s *memUserStore) RemoveRole(_ context.Context, userID, roleID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if !s.db.junction[userID][roleID] {
		return repository.ErrNotFound
	}
	delete(s.db.junction[userID], roleID)
	return nil
}

func (s *memUserStore) RemoveAllRoles(_ context.Context, userID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.junction, userID)
	return nil
}

func (s *memUserStore) List(_ context.Context, f repository.ListFilter) ([]model.User, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.User
	search := strings.ToLower(f.Search)
	for _, u := range s.db.users {
		if !f.IncludeInactive && !u.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memUserStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.junction, id)
	delete(s.db.users, id)
	return nil
}

// ----- RoleStore -----

type memRoleStore struct{ db *memDB }

func (s *memRoleStore) Create(_ context.Context, name, description string) (*model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range s.db.roles {
		if r.Name == name {
			return nil, repository.ErrRoleExists
		}
	}
	s.db.roleSeq++
	r := model.Role{ID: s.db.roleSeq, Name: name, Description: description, CreatedAt: time.Now().UTC()}
	s.db.roles[r.ID] = r
	return &r, nil
}

func (s *memRoleStore) GetByID(_ context.Context, id uint64) (*model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *memRoleStore) GetByName(_ context.Context, name string) (*model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range s.db.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memRoleStore) Update(_ context.Context, id uint64, name, description string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, other := range s.db.roles {
		if other.ID != id && other.Name == name {
			return repository.ErrRoleExists
		}
	}
	r.Name = name
	r.Description = description
	s.db.roles[id] = r
	return nil
}

func (s *memRoleStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.roles[id]; !ok {
		return repository.ErrNotFound
	}
	for _, held := range s.db.junction {
		if held[id] {
			return repository.ErrRoleInUse
		}
	}
	delete(s.db.roles, id)
	return nil
}

func (s *memRoleStore) UsersForRole(_ context.Context, roleID uint64) ([]model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.User
	for userID, held := range s.db.junction {
		if held[roleID] {
			out = append(out, *copyUser(s.db.users[userID]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memRoleStore) List(_ context.Context) ([]model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Role
	for _, r := range s.db.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memRoleStore) RolesForUser(_ context.Context, userID uint64) ([]model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.rolesOf(userID), nil
}

func (s *memRoleStore) HasAnyRole(_ context.Context, userID uint64, names ...string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.rolesOf(userID) {
		for _, n := range names {
			if r.Name == strings.ToLower(n) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memRoleStore) EnsureDefaults(ctx context.Context) error {
	for _, r := range model.DefaultRoles {
		if _, err := s.Create(ctx, r.Name, r.Description); err != nil && err != repository.ErrRoleExists {
			return err
		}
	}
	return nil
}

// ----- SessionStore -----

type memSessionStore struct{ db *memDB }

func (s *memSessionStore) Create(_ context.Context, userID uint64, token, userAgent, ip string, expiresAt time.Time) (*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess := &model.Session{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: token,
		UserAgent:    utils.DeviceLabel(userAgent),
		IP:           ip,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    expiresAt,
	}
	s.db.sessions[sess.ID] = sess
	return s.joined(sess), nil
}

func (s *memSessionStore) joined(sess *model.Session) *model.Session {
	cp := *sess
	if u, ok := s.db.users[sess.UserID]; ok {
		cp.OwnerActive = u.Active
		cp.OwnerLocked = u.Locked
	}
	return &cp
}

func (s *memSessionStore) GetByRefreshToken(_ context.Context, token string) (*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.RefreshToken == token {
			return s.joined(sess), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memSessionStore) ListActiveForUser(_ context.Context, userID uint64) ([]model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	var out []model.Session
	for _, sess := range s.db.sessions {
		if sess.UserID == userID && sess.Active && now.Before(sess.ExpiresAt) {
			out = append(out, *s.joined(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memSessionStore) Invalidate(_ context.Context, sessionID uuid.UUID, userID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[sessionID]
	if !ok || !sess.Active || (userID != 0 && sess.UserID != userID) {
		return repository.ErrNotFound
	}
	sess.Active = false
	return nil
}

func (s *memSessionStore) InvalidateAllForUser(_ context.Context, userID uint64, except uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, sess := range s.db.sessions {
		if sess.UserID == userID && sess.Active && sess.ID != except {
			sess.Active = false
			n++
		}
	}
	return n, nil
}

func (s *memSessionStore) InvalidateByRefreshToken(_ context.Context, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.RefreshToken == token {
			sess.Active = false
		}
	}
	return nil
}

func (s *memSessionStore) IsValid(_ context.Context, sess *model.Session) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess == nil || !sess.Active {
		return false, nil
	}
	if sess.Expired(time.Now().UTC()) {
		if stored, ok := s.db.sessions[sess.ID]; ok {
			stored.Active = false
		}
		sess.Active = false
		return false, nil
	}
	if !sess.OwnerActive || sess.OwnerLocked {
		return false, nil
	}
	return true, nil
}

func (s *memSessionStore) Renew(_ context.Context, oldToken, newToken string, expiresAt time.Time) (*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.RefreshToken == oldToken && sess.Active {
			sess.RefreshToken = newToken
			sess.ExpiresAt = expiresAt
			return s.joined(sess), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memSessionStore) TouchActivity(_ context.Context, sessionID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess, ok := s.db.sessions[sessionID]; ok {
		now := time.Now().UTC()
		sess.LastActivityAt = &now
	}
	return nil
}

func (s *memSessionStore) SweepExpired(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, sess := range s.db.sessions {
		if sess.Active && !now.Before(sess.ExpiresAt) {
			sess.Active = false
			n++
		}
	}
	return n, nil
}

func (s *memSessionStore) Stats(_ context.Context, userID uint64) (model.SessionStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	var st model.SessionStats
	for _, sess := range s.db.sessions {
		if sess.UserID != userID {
			continue
		}
		st.Total++
		if sess.Active && now.Before(sess.ExpiresAt) {
			st.Active++
		}
	}
	return st, nil
}

// ----- audit capture -----

type capturePublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// newTestService wires an AuthService over the fakes with a fast
// bcrypt cost.
func newTestService() (*service.AuthService, *memDB, *capturePublisher) {
	db := newMemDB()
	roles := &memRoleStore{db: db}
	_ = roles.EnsureDefaults(context.Background())
	audit := &capturePublisher{}
	svc := service.NewAuthService(service.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}, &memUserStore{db: db}, roles, &memSessionStore{db: db}, audit, zerolog.Nop())
	return svc, db, audit
}
