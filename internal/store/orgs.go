// ABOUTME: Organization, membership, and invite operations.
// ABOUTME: Duplicate membership grants are treated as already-granted, not errors.

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Member roles, most to least privileged.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Member struct {
	OrgID  string `json:"orgId"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type Invite struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	AcceptedAt string    `json:"acceptedAt,omitempty"`
}

func (s *Store) CreateUser(email, name string) (*User, error) {
	u := &User{ID: uuid.NewString(), Email: email, Name: name}
	_, err := s.db.Exec(
		"INSERT INTO users (id, email, name) VALUES (?, ?, ?)",
		u.ID, u.Email, u.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	return u, nil
}

func (s *Store) GetUser(id string) (*User, error) {
	var u User
	err := s.db.QueryRow(
		"SELECT id, email, name FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.QueryRow(
		"SELECT id, email, name FROM users WHERE email = ?", email,
	).Scan(&u.ID, &u.Email, &u.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateOrg creates an organization with the given user as its owner.
func (s *Store) CreateOrg(name, slug, ownerUserID string) (*Org, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	org := &Org{ID: uuid.NewString(), Name: name, Slug: slug}
	if _, err := tx.Exec(
		"INSERT INTO orgs (id, name, slug) VALUES (?, ?, ?)",
		org.ID, org.Name, org.Slug,
	); err != nil {
		return nil, fmt.Errorf("create org %s: %w", slug, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO org_members (org_id, user_id, role) VALUES (?, ?, ?)",
		org.ID, ownerUserID, RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("grant owner on %s: %w", slug, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Store) GetOrg(id string) (*Org, error) {
	var o Org
	err := s.db.QueryRow(
		"SELECT id, name, slug FROM orgs WHERE id = ?", id,
	).Scan(&o.ID, &o.Name, &o.Slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("org not found")
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) GetOrgBySlug(slug string) (*Org, error) {
	var o Org
	err := s.db.QueryRow(
		"SELECT id, name, slug FROM orgs WHERE slug = ?", slug,
	).Scan(&o.ID, &o.Name, &o.Slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("org not found")
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrgsForUser returns the organizations a user belongs to.
func (s *Store) ListOrgsForUser(userID string) ([]Org, error) {
	rows, err := s.db.Query(`
		SELECT o.id, o.name, o.slug FROM orgs o
		JOIN org_members m ON m.org_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Org
	for rows.Next() {
		var o Org
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *Store) DeleteOrg(id string) error {
	_, err := s.db.Exec("DELETE FROM orgs WHERE id = ?", id)
	return err
}

// AddMember grants a user a role in an organization. Granting a role the
// user already holds is not an error: the unique-constraint failure is
// logged and swallowed, everything else is reported.
func (s *Store) AddMember(orgID, userID, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}

	_, err := s.db.Exec(
		"INSERT INTO org_members (org_id, user_id, role) VALUES (?, ?, ?)",
		orgID, userID, role,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			s.logger.Info("membership already granted",
				zap.String("org", orgID),
				zap.String("user", userID))
			return nil
		}
		return fmt.Errorf("add member to %s: %w", orgID, err)
	}
	return nil
}

func (s *Store) ListMembers(orgID string) ([]Member, error) {
	rows, err := s.db.Query(`
		SELECT m.org_id, m.user_id, m.role, u.email, u.name
		FROM org_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = ?
		ORDER BY u.email`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Role, &m.Email, &m.Name); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) UpdateMemberRole(orgID, userID, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	res, err := s.db.Exec(
		"UPDATE org_members SET role = ? WHERE org_id = ? AND user_id = ?",
		role, orgID, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member not found")
	}
	return nil
}

func (s *Store) RemoveMember(orgID, userID string) error {
	_, err := s.db.Exec(
		"DELETE FROM org_members WHERE org_id = ? AND user_id = ?",
		orgID, userID,
	)
	return err
}

// CreateInvite issues a tokenized invite that expires after ttl.
func (s *Store) CreateInvite(orgID, email, role string, ttl time.Duration) (*Invite, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	inv := &Invite{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO org_invites (id, org_id, email, role, token, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		inv.ID, inv.OrgID, inv.Email, inv.Role, inv.Token, inv.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create invite for %s: %w", email, err)
	}
	return inv, nil
}

func (s *Store) ListInvites(orgID string) ([]Invite, error) {
	rows, err := s.db.Query(`
		SELECT id, org_id, email, role, token, expires_at, COALESCE(accepted_at, '')
		FROM org_invites WHERE org_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		var inv Invite
		if err := rows.Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Token, &inv.ExpiresAt, &inv.AcceptedAt); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func (s *Store) DeleteInvite(id string) error {
	_, err := s.db.Exec("DELETE FROM org_invites WHERE id = ?", id)
	return err
}

// AcceptInvite redeems a token: it finds or creates the invited user,
// grants the membership, and marks the invite accepted. Expired or
// already-accepted tokens are rejected.
func (s *Store) AcceptInvite(token, name string) (*User, error) {
	var inv Invite
	var accepted sql.NullString
	err := s.db.QueryRow(`
		SELECT id, org_id, email, role, expires_at, accepted_at
		FROM org_invites WHERE token = ?`, token,
	).Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.ExpiresAt, &accepted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite not found")
	}
	if err != nil {
		return nil, err
	}
	if accepted.Valid && accepted.String != "" {
		return nil, fmt.Errorf("invite already accepted")
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, fmt.Errorf("invite expired")
	}

	user, err := s.GetUserByEmail(inv.Email)
	if err != nil {
		user, err = s.CreateUser(inv.Email, name)
		if err != nil {
			return nil, err
		}
	}

	if err := s.AddMember(inv.OrgID, user.ID, inv.Role); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		"UPDATE org_invites SET accepted_at = CURRENT_TIMESTAMP WHERE id = ?", inv.ID,
	); err != nil {
		return nil, err
	}
	return user, nil
}
