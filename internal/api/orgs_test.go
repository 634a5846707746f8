// ABOUTME: Tests for user, organization, membership, and invite handlers.
// ABOUTME: Covers the bearer-identity fallback and the invite redemption flow.

package api

import (
	"net/http"
	"testing"
	"time"
)

func TestCreateUser(t *testing.T) {
	r, _, cleanup := newTestHandlers(t, "test_api_users.db")
	defer cleanup()

	code, resp := doJSON(t, r, "POST", "/api/v1/users", "", map[string]any{
		"email": "dana@example.com", "name": "Dana",
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", code, http.StatusCreated)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Error("created user has no id")
	}

	code, getResp := doJSON(t, r, "GET", "/api/v1/users/"+id, "", nil)
	if code != http.StatusOK {
		t.Errorf("get status = %d, want %d", code, http.StatusOK)
	}
	if getResp["email"] != "dana@example.com" {
		t.Errorf("email = %v, want dana@example.com", getResp["email"])
	}

	code, resp = doJSON(t, r, "POST", "/api/v1/users", "", map[string]any{
		"email": "dana@example.com",
	})
	if code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", code, http.StatusConflict)
	}
	if resp["code"] != "conflict" {
		t.Errorf("error code = %v, want conflict", resp["code"])
	}

	code, resp = doJSON(t, r, "POST", "/api/v1/users", "", map[string]any{"name": "No Email"})
	if code != http.StatusBadRequest {
		t.Errorf("missing email status = %d, want %d", code, http.StatusBadRequest)
	}
	if resp["field"] != "email" {
		t.Errorf("error field = %v, want email", resp["field"])
	}
}

func TestCreateOrg_OwnerFromBearer(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_orgs.db")
	defer cleanup()

	u, err := s.CreateUser("dana@example.com", "Dana")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	code, resp := doJSON(t, r, "POST", "/api/v1/orgs", u.ID, map[string]any{
		"name": "Acme Rockets",
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %v", code, http.StatusCreated, resp)
	}
	if resp["slug"] != "acme-rockets" {
		t.Errorf("slug = %v, want acme-rockets", resp["slug"])
	}

	members, err := s.ListMembers(resp["id"].(string))
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].Role != "owner" {
		t.Errorf("members = %+v, want creator as owner", members)
	}

	code, listResp := doJSON(t, r, "GET", "/api/v1/orgs", u.ID, nil)
	if code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", code, http.StatusOK)
	}
	orgs, _ := listResp["orgs"].([]any)
	if len(orgs) != 1 {
		t.Errorf("orgs count = %d, want 1", len(orgs))
	}
}

func TestCreateOrg_Validation(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_orgs2.db")
	defer cleanup()

	u, _ := s.CreateUser("dana@example.com", "Dana")

	code, resp := doJSON(t, r, "POST", "/api/v1/orgs", u.ID, map[string]any{})
	if code != http.StatusBadRequest || resp["field"] != "name" {
		t.Errorf("missing name = %d %v, want 400 field name", code, resp["field"])
	}

	code, resp = doJSON(t, r, "POST", "/api/v1/orgs", "", map[string]any{"name": "Acme"})
	if code != http.StatusBadRequest || resp["field"] != "ownerId" {
		t.Errorf("anonymous create = %d %v, want 400 field ownerId", code, resp["field"])
	}

	code, _ = doJSON(t, r, "POST", "/api/v1/orgs", u.ID, map[string]any{"name": "Acme", "slug": "acme"})
	if code != http.StatusCreated {
		t.Fatalf("first create status = %d, want %d", code, http.StatusCreated)
	}
	code, resp = doJSON(t, r, "POST", "/api/v1/orgs", u.ID, map[string]any{"name": "Other", "slug": "acme"})
	if code != http.StatusConflict {
		t.Errorf("duplicate slug status = %d, want %d", code, http.StatusConflict)
	}
	if resp["code"] != "conflict" {
		t.Errorf("error code = %v, want conflict", resp["code"])
	}
}

func TestGetOrg_BySlug(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_orgs3.db")
	defer cleanup()

	_, org := seedOrg(t, s)

	code, resp := doJSON(t, r, "GET", "/api/v1/orgs/acme", "", nil)
	if code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", code, http.StatusOK)
	}
	if resp["id"] != org.ID {
		t.Errorf("id = %v, want %v", resp["id"], org.ID)
	}

	code, _ = doJSON(t, r, "GET", "/api/v1/orgs/no-such-org", "", nil)
	if code != http.StatusNotFound {
		t.Errorf("missing org status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestMemberLifecycle(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_members.db")
	defer cleanup()

	_, org := seedOrg(t, s)
	other, _ := s.CreateUser("sam@example.com", "Sam")
	base := "/api/v1/orgs/" + org.ID + "/members"

	code, resp := doJSON(t, r, "POST", base, "", map[string]any{"userId": other.ID})
	if code != http.StatusCreated {
		t.Fatalf("add status = %d, want %d: %v", code, http.StatusCreated, resp)
	}
	if resp["role"] != "editor" {
		t.Errorf("default role = %v, want editor", resp["role"])
	}

	// Granting an existing membership again is not an error.
	code, _ = doJSON(t, r, "POST", base, "", map[string]any{"userId": other.ID, "role": "editor"})
	if code != http.StatusCreated {
		t.Errorf("re-add status = %d, want %d", code, http.StatusCreated)
	}

	code, resp = doJSON(t, r, "POST", base, "", map[string]any{"userId": other.ID, "role": "superuser"})
	if code != http.StatusBadRequest || resp["field"] != "role" {
		t.Errorf("bad role = %d %v, want 400 field role", code, resp["field"])
	}

	code, listResp := doJSON(t, r, "GET", base, "", nil)
	if code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", code, http.StatusOK)
	}
	members, _ := listResp["members"].([]any)
	if len(members) != 2 {
		t.Errorf("members count = %d, want 2", len(members))
	}

	code, resp = doJSON(t, r, "PATCH", base+"/"+other.ID, "", map[string]any{"role": "admin"})
	if code != http.StatusOK || resp["role"] != "admin" {
		t.Errorf("update role = %d %v, want 200 admin", code, resp["role"])
	}

	code, _ = doJSON(t, r, "DELETE", base+"/"+other.ID, "", nil)
	if code != http.StatusNoContent {
		t.Errorf("remove status = %d, want %d", code, http.StatusNoContent)
	}

	_, listResp = doJSON(t, r, "GET", base, "", nil)
	members, _ = listResp["members"].([]any)
	if len(members) != 1 {
		t.Errorf("members after remove = %d, want 1", len(members))
	}
}

func TestInviteFlow(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_invites.db")
	defer cleanup()

	_, org := seedOrg(t, s)
	base := "/api/v1/orgs/" + org.ID + "/invites"

	code, resp := doJSON(t, r, "POST", base, "", map[string]any{
		"email": "sam@example.com", "role": "viewer",
	})
	if code != http.StatusCreated {
		t.Fatalf("create invite status = %d, want %d: %v", code, http.StatusCreated, resp)
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("invite has no token")
	}

	code, listResp := doJSON(t, r, "GET", base, "", nil)
	if code != http.StatusOK {
		t.Fatalf("list invites status = %d", code)
	}
	invites, _ := listResp["invites"].([]any)
	if len(invites) != 1 {
		t.Errorf("invites count = %d, want 1", len(invites))
	}

	code, resp = doJSON(t, r, "POST", "/api/v1/invites/accept", "", map[string]any{
		"token": token, "name": "Sam",
	})
	if code != http.StatusOK {
		t.Fatalf("accept status = %d, want %d: %v", code, http.StatusOK, resp)
	}
	if resp["email"] != "sam@example.com" {
		t.Errorf("accepted user email = %v, want sam@example.com", resp["email"])
	}

	members, _ := s.ListMembers(org.ID)
	if len(members) != 2 {
		t.Errorf("members after accept = %d, want 2", len(members))
	}

	// A token redeems once.
	code, _ = doJSON(t, r, "POST", "/api/v1/invites/accept", "", map[string]any{"token": token})
	if code != http.StatusBadRequest {
		t.Errorf("second accept status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestAcceptInvite_Expired(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_invites2.db")
	defer cleanup()

	_, org := seedOrg(t, s)
	inv, err := s.CreateInvite(org.ID, "late@example.com", "editor", -time.Hour)
	if err != nil {
		t.Fatalf("CreateInvite() error = %v", err)
	}

	code, resp := doJSON(t, r, "POST", "/api/v1/invites/accept", "", map[string]any{
		"token": inv.Token,
	})
	if code != http.StatusBadRequest {
		t.Errorf("accept expired status = %d, want %d", code, http.StatusBadRequest)
	}
	if resp["code"] != "invalid_request" {
		t.Errorf("error code = %v, want invalid_request", resp["code"])
	}
}
