package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const testJWTSecret = "test-secret"

type testPanel struct {
	server *httptest.Server
	client *http.Client
	now    atomic.Int64
}

// setNow moves the engine clock.
func (p *testPanel) setNow(t time.Time) {
	p.now.Store(t.UnixNano())
}

func setupPanel(t *testing.T) *testPanel {
	t.Helper()
	database := db.NewTestDB(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateAdmin(context.Background(), database, &model.Admin{
		Username: "desk", PasswordHash: string(hash), Name: "Front desk", Role: model.RoleAdmin,
	}); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	svc := circulation.NewService(store.NewLibrary(database), decimal.NewFromInt(5))
	svc.Location = time.UTC
	p := &testPanel{}
	p.setNow(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	svc.Now = func() time.Time { return time.Unix(0, p.now.Load()).UTC() }

	router, err := NewRouter(database, testJWTSecret, svc)
	if err != nil {
		t.Fatalf("creating router: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	p.server = server
	p.client = &http.Client{Jar: jar}
	return p
}

func (p *testPanel) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := p.client.PostForm(p.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (p *testPanel) get(t *testing.T, path string) (int, string, string) {
	t.Helper()
	resp, err := p.client.Get(p.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Request.URL.Path, string(body)
}

func (p *testPanel) login(t *testing.T) {
	t.Helper()
	status, body := p.post(t, "/login", url.Values{"username": {"desk"}, "password": {"password"}})
	if status != http.StatusOK || !strings.Contains(body, "Nadzorna plošča") {
		t.Fatalf("login did not land on dashboard: %d", status)
	}
}

func TestLoadTemplates(t *testing.T) {
	if _, err := LoadTemplates(); err != nil {
		t.Fatalf("loading templates: %v", err)
	}
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	p := setupPanel(t)

	for _, path := range []string{"/", "/books", "/borrow", "/returned"} {
		status, final, _ := p.get(t, path)
		if status != http.StatusOK || final != "/login" {
			t.Errorf("GET %s: expected redirect to /login, ended at %s (%d)", path, final, status)
		}
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	p := setupPanel(t)

	_, body := p.post(t, "/login", url.Values{"username": {"desk"}, "password": {"nope"}})
	if !strings.Contains(body, "Napačno uporabniško ime ali geslo.") {
		t.Error("expected login error message")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	p := setupPanel(t)
	p.login(t)

	// Keep the cookie so it can be replayed after logout.
	u, _ := url.Parse(p.server.URL)
	cookies := p.client.Jar.Cookies(u)

	p.post(t, "/logout", nil)

	jar, _ := cookiejar.New(nil)
	jar.SetCookies(u, cookies)
	replay := &http.Client{Jar: jar}
	resp, err := replay.Get(p.server.URL + "/books")
	if err != nil {
		t.Fatalf("replaying cookie: %v", err)
	}
	resp.Body.Close()
	if resp.Request.URL.Path != "/login" {
		t.Errorf("expected revoked session to be redirected to /login, got %s", resp.Request.URL.Path)
	}
}

func TestBorrowAndReturnThroughPanel(t *testing.T) {
	p := setupPanel(t)
	p.login(t)

	p.post(t, "/members", url.Values{"first_name": {"Ana"}, "last_name": {"Kovač"}})
	p.post(t, "/books", url.Values{"name": {"Alamut"}, "author": {"Vladimir Bartol"}})
	p.post(t, "/books", url.Values{"name": {"Cvetje v jeseni"}})

	_, _, body := p.get(t, "/borrow")
	if !strings.Contains(body, "Ana Kovač") || !strings.Contains(body, "Alamut") {
		t.Fatal("borrow page should offer the member and the available books")
	}

	status, body := p.post(t, "/borrow", url.Values{
		"member_id": {"1"},
		"due_date":  {"2024-01-05"},
		"book_id":   {"1", "2"},
	})
	if status != http.StatusOK || strings.Contains(body, "flash error") {
		t.Fatalf("issue failed: %d", status)
	}

	// Lending a borrowed copy again shows the rejection.
	_, body = p.post(t, "/borrow", url.Values{
		"member_id": {"1"},
		"due_date":  {"2024-01-05"},
		"book_id":   {"1"},
	})
	if !strings.Contains(body, "flash error") {
		t.Error("expected an error flash for a borrowed book")
	}

	// Return one copy three days late through the engine clock.
	p.setNow(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC))
	_, body = p.post(t, "/borrow/1/return", url.Values{"book_id": {"1"}})
	if !strings.Contains(body, "zamudnina 15.00") {
		t.Errorf("expected late return message with fine, got page without it")
	}

	_, _, body = p.get(t, "/returned")
	if !strings.Contains(body, "Vračilo #1") || !strings.Contains(body, "15.00 €") {
		t.Error("returned page should list the batch with its total")
	}
	if !strings.Contains(body, "Front desk") {
		t.Error("returned page should name the processing admin")
	}

	// Delete the only detail; the batch goes with it.
	p.post(t, "/returned/1/delete", url.Values{"return_id": {"1"}, "book_id": {"1"}})
	_, _, body = p.get(t, "/returned")
	if !strings.Contains(body, "Ni vrnjenih knjig.") {
		t.Error("expected no batches after deleting the last detail")
	}
}

func TestBookStatusAndDashboard(t *testing.T) {
	p := setupPanel(t)
	p.login(t)

	p.post(t, "/books", url.Values{"name": {"Krst pri Savici"}})
	p.post(t, "/books/1", url.Values{"name": {"Krst pri Savici"}, "status": {"lost"}})

	_, _, body := p.get(t, "/books?status=lost")
	if !strings.Contains(body, "Krst pri Savici") {
		t.Error("lost filter should list the book")
	}

	_, _, body = p.get(t, "/")
	if !strings.Contains(body, "<span>1</span> knjig") {
		t.Error("dashboard should count the book")
	}
}

func TestAdminsPageRequiresAdminRole(t *testing.T) {
	p := setupPanel(t)
	p.login(t)

	p.post(t, "/admins", url.Values{
		"username": {"lib"}, "password": {"password"}, "role": {"librarian"},
	})
	_, _, body := p.get(t, "/admins")
	if !strings.Contains(body, "lib") {
		t.Fatal("new librarian should be listed")
	}

	jar, _ := cookiejar.New(nil)
	p.client = &http.Client{Jar: jar}
	p.post(t, "/login", url.Values{"username": {"lib"}, "password": {"password"}})

	status, _, _ := p.get(t, "/admins")
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for librarian, got %d", status)
	}
}
