package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateStaffStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	staff, err := manager.CreateStaff(domain.StaffCreateRequest{
		Username: "newclerk",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if staff.Username != "newclerk" {
		t.Fatalf("unexpected username %s", staff.Username)
	}
	if staff.Role != domain.RoleStaff {
		t.Fatalf("expected staff role, got %s", staff.Role)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "newclerk" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected staff user to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected staff password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "newclerk",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed staff password failed: %v", err)
	}
}

func TestCreateStaffRejectsShortCredentials(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "ab", Password: "pass1234"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateStaff(domain.StaffCreateRequest{Username: "validname", Password: "abc"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}

func TestParseTokenRejectsTokenFromOtherSecret(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	first := NewAuthManager("secret-one-that-is-long-enough!!", time.Hour, store)
	second := NewAuthManager("secret-two-that-is-long-enough!!", time.Hour, store)

	resp, err := first.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := second.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}

	actor, err := first.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
}
