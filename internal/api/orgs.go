// ABOUTME: Handlers for users, organizations, memberships, and invites.
// ABOUTME: The acting user comes from the auth context unless the body names one.

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/constructive-io/gridbase/internal/auth"
	"github.com/constructive-io/gridbase/internal/errors"
	"github.com/constructive-io/gridbase/internal/store"
)

const defaultInviteTTL = 7 * 24 * time.Hour

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Email == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: email", "email")
		return
	}

	user, err := h.store.CreateUser(req.Email, req.Name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			errors.WriteError(w, http.StatusConflict, errors.ErrConflict, "A user with that email already exists")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to create user")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, user)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(chi.URLParam(r, "userID"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "User not found")
		return
	}
	writeJSON(w, user)
}

// actingUser resolves who performs the request: an explicit id in the
// request wins, then the bearer identity.
func actingUser(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return auth.UserFromContext(r.Context())
}

func (h *Handlers) listOrgs(w http.ResponseWriter, r *http.Request) {
	userID := actingUser(r, r.URL.Query().Get("userId"))
	if userID == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required parameter: userId", "userId")
		return
	}

	orgs, err := h.store.ListOrgsForUser(userID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to list organizations")
		return
	}
	writeJSON(w, map[string]any{"orgs": orgs})
}

func (h *Handlers) createOrg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Slug    string `json:"slug"`
		OwnerID string `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: name", "name")
		return
	}
	ownerID := actingUser(r, req.OwnerID)
	if ownerID == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: ownerId", "ownerId")
		return
	}
	if req.Slug == "" {
		req.Slug = slugify(req.Name)
	}

	org, err := h.store.CreateOrg(req.Name, req.Slug, ownerID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			errors.WriteError(w, http.StatusConflict, errors.ErrConflict, "An organization with that slug already exists")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to create organization")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, org)
}

func (h *Handlers) getOrg(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "orgID")
	org, err := h.store.GetOrg(ref)
	if err != nil {
		org, err = h.store.GetOrgBySlug(ref)
	}
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Organization not found")
		return
	}
	writeJSON(w, org)
}

func (h *Handlers) deleteOrg(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteOrg(chi.URLParam(r, "orgID")); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Organization not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListMembers(chi.URLParam(r, "orgID"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to list members")
		return
	}
	writeJSON(w, map[string]any{"members": members})
}

func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.UserID == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: userId", "userId")
		return
	}
	if req.Role == "" {
		req.Role = store.RoleEditor
	}
	if !store.ValidRole(req.Role) {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Invalid role: "+req.Role, "role")
		return
	}

	if err := h.store.AddMember(chi.URLParam(r, "orgID"), req.UserID, req.Role); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to add member")
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"orgId": chi.URLParam(r, "orgID"), "userId": req.UserID, "role": req.Role})
}

func (h *Handlers) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if !store.ValidRole(req.Role) {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Invalid role: "+req.Role, "role")
		return
	}

	orgID := chi.URLParam(r, "orgID")
	userID := chi.URLParam(r, "userID")
	if err := h.store.UpdateMemberRole(orgID, userID, req.Role); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Member not found")
		return
	}
	writeJSON(w, map[string]any{"orgId": orgID, "userId": userID, "role": req.Role})
}

func (h *Handlers) removeMember(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveMember(chi.URLParam(r, "orgID"), chi.URLParam(r, "userID")); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Member not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.store.ListInvites(chi.URLParam(r, "orgID"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to list invites")
		return
	}
	writeJSON(w, map[string]any{"invites": invites})
}

func (h *Handlers) createInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Role     string `json:"role"`
		TTLHours int    `json:"ttlHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Email == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: email", "email")
		return
	}
	if req.Role == "" {
		req.Role = store.RoleEditor
	}
	if !store.ValidRole(req.Role) {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Invalid role: "+req.Role, "role")
		return
	}
	ttl := defaultInviteTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	invite, err := h.store.CreateInvite(chi.URLParam(r, "orgID"), req.Email, req.Role, ttl)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to create invite")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, invite)
}

func (h *Handlers) deleteInvite(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteInvite(chi.URLParam(r, "inviteID")); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Invite not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) acceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Token == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: token", "token")
		return
	}

	user, err := h.store.AcceptInvite(req.Token, req.Name)
	if err != nil {
		errors.WriteErrorWithDetails(w, http.StatusBadRequest, errors.ErrInvalidRequest, "Invite could not be accepted", err.Error())
		return
	}
	writeJSON(w, user)
}

// slugify lowercases a name and collapses runs of non-alphanumerics to
// single hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
