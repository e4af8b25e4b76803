package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dancetime/booking/internal/auth"
	"github.com/dancetime/booking/internal/http/views"
	"github.com/dancetime/booking/internal/middleware"
	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/session"
	"github.com/dancetime/booking/internal/storage/memory"
)

type harness struct {
	t     *testing.T
	store *memory.Store
	srv   *httptest.Server
}

func newHarness(t *testing.T, admin AdminAccount) *harness {
	t.Helper()

	renderer, err := views.New()
	require.NoError(t, err)
	hashKey, blockKey, err := session.DeriveKeys([]byte("test-secret-test-secret-test-secret"))
	require.NoError(t, err)

	store := memory.New()
	sessions := session.NewCookieManager(hashKey, blockKey, time.Hour, false)
	logger := zerolog.Nop()
	pages := NewPages(renderer, logger)

	r := chi.NewRouter()
	r.Use(middleware.LoadIdentity(sessions))
	r.NotFound(pages.NotFound)
	NewHealthHandler(time.Now(), store).Register(r)
	NewAuthHandler(store, sessions, pages, admin, middleware.Throttle(0, 0), logger).Register(r)
	NewCourseHandler(store, pages, logger).Register(r)
	NewAdminHandler(store, pages, logger).Register(r)
	NewUserHandler(store, sessions, pages, logger).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{t: t, store: store, srv: srv}
}

var defaultAdmin = AdminAccount{Username: "admin", Password: "password"}

// client returns a browser-like client with its own cookie jar that does
// not follow redirects.
func (h *harness) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) get(c *http.Client, path string) (int, string, string) {
	h.t.Helper()
	resp, err := c.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	return read(h.t, resp)
}

func (h *harness) post(c *http.Client, path string, form url.Values) (int, string, string) {
	h.t.Helper()
	resp, err := c.PostForm(h.srv.URL+path, form)
	require.NoError(h.t, err)
	return read(h.t, resp)
}

func read(t *testing.T, resp *http.Response) (int, string, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (h *harness) adminClient() *http.Client {
	c := h.client()
	status, loc, _ := h.post(c, "/login", url.Values{"username": {"admin"}, "password": {"password"}})
	require.Equal(h.t, http.StatusSeeOther, status)
	require.Equal(h.t, "/", loc)
	return c
}

func (h *harness) signup(username, email string) *http.Client {
	c := h.client()
	status, loc, body := h.post(c, "/signup", url.Values{
		"username": {username},
		"email":    {email},
		"password": {"secret1"},
	})
	require.Equal(h.t, http.StatusSeeOther, status, body)
	require.Equal(h.t, "/", loc)
	return c
}

func (h *harness) course(regs ...models.Registration) models.Course {
	ctx := context.Background()
	c, err := h.store.CreateCourse(ctx, models.CourseDetails{Name: "Beginner Salsa", Duration: "6 weeks"}, []models.Class{
		{ClassName: "Salsa 1", Date: "2025-04-10", Time: "18:00", Location: "Studio A", Price: 10},
	})
	require.NoError(h.t, err)
	for _, reg := range regs {
		c, err = h.store.AddRegistration(ctx, c.ID, reg)
		require.NoError(h.t, err)
	}
	return c
}

func (h *harness) reload(id string) models.Course {
	c, err := h.store.GetCourse(context.Background(), id)
	require.NoError(h.t, err)
	return c
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	c := h.client()

	status, _, body := h.post(c, "/signup", url.Values{"username": {"al"}, "email": {"nope"}, "password": {"12345"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Username must be at least 3 characters.")
	assert.Contains(t, body, "A valid email is required.")
	assert.Contains(t, body, "Password must be at least 6 characters long.")
	assert.Contains(t, body, `value="al"`)

	users, err := h.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	h.signup("alice", "a@x.com")
	user, err := h.store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.UserRole, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "secret1"))

	for _, dup := range []url.Values{
		{"username": {"alice"}, "email": {"other@x.com"}, "password": {"secret1"}},
		{"username": {"other"}, "email": {"a@x.com"}, "password": {"secret1"}},
	} {
		status, _, body = h.post(h.client(), "/signup", dup)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, "already exists")
	}
}

func TestSignupStartsSession(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	c := h.signup("alice", "a@x.com")

	status, _, body := h.get(c, "/user/dashboard")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "a@x.com")

	status, loc, _ := h.get(c, "/logout")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/", loc)

	status, loc, _ = h.get(c, "/user/dashboard")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)
}

func TestLogin(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	h.signup("alice", "a@x.com")

	c := h.client()
	status, _, body := h.post(c, "/login", url.Values{"username": {"alice"}, "password": {"wrong-one"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Invalid username or password")

	status, loc, _ := h.post(c, "/login", url.Values{"username": {"alice"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/", loc)

	_, _, body = h.get(c, "/")
	assert.Contains(t, body, "Hello alice")
	assert.Contains(t, body, "/user/dashboard")
}

func TestAdminBypassLogin(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	c := h.adminClient()

	status, _, body := h.get(c, "/admin/dashboard")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/admin/dashboard")

	disabled := newHarness(t, AdminAccount{Username: "admin"})
	status, _, _ = disabled.post(disabled.client(), "/login", url.Values{"username": {"admin"}, "password": {""}})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutesRejectOtherRoles(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(models.Registration{Name: "Bob", Email: "b@x.com"})
	user := h.signup("alice", "a@x.com")

	for _, c := range []*http.Client{h.client(), user} {
		status, loc, _ := h.post(c, "/admin/delete-course/"+course.ID, nil)
		assert.Equal(t, http.StatusSeeOther, status)
		assert.Equal(t, "/login", loc)

		status, loc, _ = h.post(c, "/admin/delete-registration/"+course.ID+"/0", nil)
		assert.Equal(t, http.StatusSeeOther, status)
		assert.Equal(t, "/login", loc)

		status, loc, _ = h.get(c, "/admin/manage-users")
		assert.Equal(t, http.StatusSeeOther, status)
		assert.Equal(t, "/login", loc)
	}
	assert.Len(t, h.reload(course.ID).Registrations, 1)

	status, loc, _ := h.get(h.adminClient(), "/user/dashboard")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)
}

func TestUserCannotTouchAnotherRegistration(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(
		models.Registration{Name: "Bob", Email: "b@x.com"},
		models.Registration{Name: "Alice", Email: "a@x.com"},
	)
	alice := h.signup("alice", "a@x.com")

	status, _, _ := h.get(alice, "/user/edit-registration/"+course.ID+"/0")
	assert.Equal(t, http.StatusForbidden, status)
	status, _, _ = h.post(alice, "/user/edit-registration/"+course.ID+"/0", url.Values{"name": {"Hacked"}})
	assert.Equal(t, http.StatusForbidden, status)
	status, _, _ = h.post(alice, "/user/unregister/"+course.ID+"/0", nil)
	assert.Equal(t, http.StatusForbidden, status)

	assert.Equal(t, course.Registrations, h.reload(course.ID).Registrations)
}

func TestOutOfRangeIndexes(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(models.Registration{Name: "Alice", Email: "a@x.com"})
	admin := h.adminClient()
	alice := h.signup("alice", "a@x.com")

	for _, idx := range []string{"1", "-1", "abc"} {
		status, _, _ := h.get(admin, "/admin/edit-class/"+course.ID+"/"+idx)
		assert.Equal(t, http.StatusBadRequest, status, idx)
		status, _, _ = h.post(admin, "/admin/edit-class/"+course.ID+"/"+idx, url.Values{"className": {"X"}})
		assert.Equal(t, http.StatusBadRequest, status, idx)
		status, _, _ = h.post(admin, "/admin/edit-registration/"+course.ID+"/"+idx, url.Values{"name": {"X"}, "email": {"x@x.com"}})
		assert.Equal(t, http.StatusBadRequest, status, idx)
		status, _, _ = h.post(admin, "/admin/delete-registration/"+course.ID+"/"+idx, nil)
		assert.Equal(t, http.StatusBadRequest, status, idx)
		status, _, _ = h.post(alice, "/user/unregister/"+course.ID+"/"+idx, nil)
		assert.Equal(t, http.StatusBadRequest, status, idx)
		status, _, _ = h.post(alice, "/user/edit-registration/"+course.ID+"/"+idx, url.Values{"name": {"X"}})
		assert.Equal(t, http.StatusBadRequest, status, idx)
	}

	after := h.reload(course.ID)
	assert.Equal(t, course.Classes, after.Classes)
	assert.Equal(t, course.Registrations, after.Registrations)
}

func TestMissingRecordsAre404(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	admin := h.adminClient()

	status, _, body := h.get(h.client(), "/register-course/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Course not found.")

	status, _, _ = h.post(h.client(), "/register-course/missing", url.Values{"email": {"a@x.com"}})
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = h.get(admin, "/admin/edit-course/missing")
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = h.post(admin, "/admin/edit-course/missing", url.Values{"name": {"X"}})
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = h.get(admin, "/admin/edit-user/missing")
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = h.get(h.client(), "/no/such/page")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRegisterThenListMine(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(models.Registration{Name: "Bob", Email: "b@x.com"})
	other := h.course()
	alice := h.signup("alice", "a@x.com")

	status, _, body := h.get(alice, "/register-course/"+course.ID)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `value="a@x.com"`)

	status, _, body = h.post(alice, "/register-course/"+course.ID, url.Values{"name": {"Alice"}, "email": {"a@x.com"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Thank you, Alice!")
	assert.Contains(t, body, "Beginner Salsa")

	status, _, body = h.get(alice, "/user/my-registrations")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, strings.Count(body, "/user/edit-registration/"))
	assert.Contains(t, body, "/user/edit-registration/"+course.ID+"/1")
	assert.Contains(t, body, "Alice (a@x.com)")
	assert.NotContains(t, body, "Bob")
	assert.NotContains(t, body, other.ID)

	status, _, body = h.post(alice, "/register-course/"+course.ID, url.Values{"name": {"Alice"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Email is required.")
}

func TestUserEditKeepsSessionEmail(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(models.Registration{Name: "Alice", Email: "a@x.com"})
	alice := h.signup("alice", "a@x.com")

	status, loc, _ := h.post(alice, "/user/edit-registration/"+course.ID+"/0", url.Values{"name": {"Ally"}, "email": {"evil@x.com"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/user/my-registrations", loc)

	reg := h.reload(course.ID).Registrations[0]
	assert.Equal(t, "Ally", reg.Name)
	assert.Equal(t, "a@x.com", reg.Email)
	assert.Equal(t, course.Registrations[0].ID, reg.ID)

	status, _, _ = h.post(alice, "/user/unregister/"+course.ID+"/0", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Empty(t, h.reload(course.ID).Registrations)
}

func TestAdminCourseLifecycle(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	admin := h.adminClient()

	status, _, body := h.post(admin, "/admin/add-course", url.Values{"duration": {"1 week"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Course name is required.")

	status, loc, _ := h.post(admin, "/admin/add-course", url.Values{
		"name": {"Tango"}, "duration": {"4 weeks"}, "description": {"Close embrace"},
		"className": {"Tango 1"}, "date": {"2025-05-01"}, "time": {"19:00"}, "location": {"Hall"}, "price": {"12.5"},
	})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/manage-courses", loc)

	courses, err := h.store.ListCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	course := courses[0]
	require.Len(t, course.Classes, 1)
	assert.InDelta(t, 12.5, course.Classes[0].Price, 0.001)

	_, _, body = h.get(admin, "/admin/manage-courses")
	assert.Contains(t, body, "Tango")

	status, _, _ = h.post(admin, "/admin/edit-class/"+course.ID+"/0", url.Values{
		"className": {"Tango Basics"}, "date": {"2025-05-02"}, "time": {"20:00"}, "location": {"Hall B"}, "price": {"abc"},
	})
	assert.Equal(t, http.StatusSeeOther, status)
	class := h.reload(course.ID).Classes[0]
	assert.Equal(t, "Tango Basics", class.ClassName)
	assert.Zero(t, class.Price)
	assert.Equal(t, course.Classes[0].ID, class.ID)

	status, loc, _ = h.post(admin, "/admin/delete-course/"+course.ID, nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/manage-courses", loc)
	n, err := h.store.CountCourses(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdminEditCourseDropsBlankClasses(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course()
	admin := h.adminClient()

	status, _, _ := h.post(admin, "/admin/edit-course/"+course.ID, url.Values{
		"name":      {"Salsa Plus"},
		"duration":  {"8 weeks"},
		"className": {"A", "", "C"},
		"date":      {"d1", "d2", "d3"},
		"time":      {"t1", "t2", "t3"},
		"location":  {"l1", "l2", "l3"},
		"price":     {"1", "2", "3"},
	})
	assert.Equal(t, http.StatusSeeOther, status)

	after := h.reload(course.ID)
	assert.Equal(t, "Salsa Plus", after.Name)
	require.Len(t, after.Classes, 2)
	assert.Equal(t, "A", after.Classes[0].ClassName)
	assert.Equal(t, "d1", after.Classes[0].Date)
	assert.Equal(t, "C", after.Classes[1].ClassName)
	assert.Equal(t, "d3", after.Classes[1].Date)
	assert.InDelta(t, 3.0, after.Classes[1].Price, 0.001)
}

func TestAdminDeleteRegistrationCompacts(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(
		models.Registration{Name: "R0", Email: "r0@x.com"},
		models.Registration{Name: "R1", Email: "r1@x.com"},
		models.Registration{Name: "R2", Email: "r2@x.com"},
	)
	admin := h.adminClient()

	status, _, body := h.get(admin, "/admin/registrations/"+course.ID)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "r2@x.com")

	status, loc, _ := h.post(admin, "/admin/delete-registration/"+course.ID+"/1", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/registrations/"+course.ID, loc)

	regs := h.reload(course.ID).Registrations
	require.Len(t, regs, 2)
	assert.Equal(t, "R0", regs[0].Name)
	assert.Equal(t, "R2", regs[1].Name)

	status, _, _ = h.post(admin, "/admin/edit-registration/"+course.ID+"/1", url.Values{"name": {"R2b"}, "email": {"new@x.com"}})
	assert.Equal(t, http.StatusSeeOther, status)
	regs = h.reload(course.ID).Registrations
	assert.Equal(t, "R2b", regs[1].Name)
	assert.Equal(t, "new@x.com", regs[1].Email)
}

func TestAdminUserManagement(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	admin := h.adminClient()
	ctx := context.Background()

	status, _, body := h.post(admin, "/admin/add-user", url.Values{"username": {"carol"}, "email": {"c@x.com"}, "role": {"owner"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Role must be admin or user.")
	assert.Contains(t, body, "Password is required.")

	status, loc, _ := h.post(admin, "/admin/add-user", url.Values{"username": {"carol"}, "email": {"c@x.com"}, "role": {"admin"}, "password": {"pw1234"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/manage-users", loc)

	carol, err := h.store.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.AdminRole, carol.Role)
	hash := carol.PasswordHash

	status, _, _ = h.post(admin, "/admin/edit-user/"+carol.ID, url.Values{"username": {"caroline"}, "email": {"c@x.com"}, "role": {"user"}})
	assert.Equal(t, http.StatusSeeOther, status)
	carol, err = h.store.FindByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, "caroline", carol.Username)
	assert.Equal(t, models.UserRole, carol.Role)
	assert.Equal(t, hash, carol.PasswordHash)

	status, _, _ = h.post(admin, "/admin/edit-user/"+carol.ID, url.Values{"username": {"caroline"}, "email": {"c@x.com"}, "role": {"user"}, "password": {"newpass"}})
	assert.Equal(t, http.StatusSeeOther, status)
	carol, err = h.store.FindByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(carol.PasswordHash, "newpass"))

	_, _, body = h.get(admin, "/admin/manage-users")
	assert.Contains(t, body, "caroline")

	status, loc, _ = h.post(admin, "/admin/delete-user/"+carol.ID, nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/admin/manage-users", loc)
	users, err := h.store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	alice := h.signup("alice", "a@x.com")

	status, loc, _ := h.post(alice, "/user/delete-account", nil)
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/", loc)

	users, err := h.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	status, loc, _ = h.get(alice, "/user/dashboard")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)
}

func TestCatalogShowsRegisterLinkToUsersOnly(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course()

	status, _, body := h.get(h.client(), "/courses")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Beginner Salsa")
	assert.Contains(t, body, "£10.00")
	assert.NotContains(t, body, "/register-course/"+course.ID)

	_, _, body = h.get(h.signup("alice", "a@x.com"), "/courses")
	assert.Contains(t, body, "/register-course/"+course.ID)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	status, _, body := h.get(h.client(), "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestAdminEditRegistrationRerendersOnMissingEmail(t *testing.T) {
	h := newHarness(t, defaultAdmin)
	course := h.course(models.Registration{Name: "Bob", Email: "b@x.com"})
	admin := h.adminClient()

	status, _, body := h.post(admin, "/admin/edit-registration/"+course.ID+"/0", url.Values{"name": {"Robert"}, "email": {" "}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Email is required.")
	assert.Contains(t, body, `value="Robert"`)
	assert.Contains(t, body, `action="/admin/edit-registration/`+course.ID+`/0"`)

	assert.Equal(t, course.Registrations, h.reload(course.ID).Registrations)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsStoreOutage(t *testing.T) {
	r := chi.NewRouter()
	NewHealthHandler(time.Now(), downStore{}).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"error":"connection refused"`)
}
