package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/identity"
	"rollcall/internal/metrics"
	"rollcall/internal/models"
	"rollcall/internal/repository"
	"rollcall/internal/service"
)

// base64("handler-test-webhook-key")
const testWebhookSecret = "whsec_aGFuZGxlci10ZXN0LXdlYmhvb2sta2V5"

type testServer struct {
	handler  http.Handler
	verifier *identity.Verifier
	webhook  *identity.WebhookVerifier
	users    *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	verifier, err := identity.NewVerifier("handler-test-secret", "", "rollcall-test")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	webhook, err := identity.NewWebhookVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier() error = %v", err)
	}

	store := repository.NewStore(db)
	users := service.NewUserService(store, nil)
	m := metrics.New()

	h := Handlers{
		Middleware: NewMiddleware(verifier, service.NewAccessService(store)),
		Groups:     NewGroupHandler(service.NewGroupService(db, time.UTC)),
		Activities: NewActivityHandler(service.NewActivityService(db, time.UTC)),
		Events:     NewEventHandler(service.NewEventService(db, time.UTC), m),
		Users:      NewUserHandler(users, webhook),
		Health:     NewHealthHandler(db),
	}

	return &testServer{
		handler:  Routes(h, nil, m),
		verifier: verifier,
		webhook:  webhook,
		users:    users,
	}
}

// user registers an account and returns a bearer token for it
func (s *testServer) user(t *testing.T, name, phone string) (*models.User, string) {
	t.Helper()
	u, _, err := s.users.SyncUser(context.Background(), service.SyncUserInput{
		ExternalID: "ext_" + name,
		FirstName:  name,
		Phone:      phone,
	})
	if err != nil {
		t.Fatalf("SyncUser(%s) error = %v", name, err)
	}
	token, err := s.verifier.Generate(u.ExternalID, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return u, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createGroup(t *testing.T, token string) *models.GroupDetails {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/group", token, map[string]string{
		"groupName":      "Soccer Club",
		"activityName":   "Thursday Game",
		"recurrenceRule": "FREQ=WEEKLY;BYDAY=TH",
		"location":       "Riverside pitch",
		"time":           "19:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/group = %d: %s", rec.Code, rec.Body.String())
	}
	var group models.GroupDetails
	decode(t, rec, &group)
	return &group
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Error != kind {
		t.Errorf("error kind = %q, want %q", body.Error, kind)
	}
	if body.Message == "" {
		t.Error("error message is empty")
	}
}

func assertMessage(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body messageResponse
	decode(t, rec, &body)
	if body.Message != want {
		t.Errorf("message = %q, want %q", body.Message, want)
	}
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "alice", "+15550000001")
	stranger, _ := s.verifier.Generate("ext_nobody", time.Hour)

	tests := []struct {
		name   string
		header string
		status int
		kind   string
	}{
		{"missing header", "", http.StatusUnauthorized, KindUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized, KindUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, KindUnauthorized},
		{"unknown user", "Bearer " + stranger, http.StatusNotFound, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			assertError(t, rec, tt.status, tt.kind)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/users/me", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var me models.User
		decode(t, rec, &me)
		if me.FirstName != "alice" {
			t.Errorf("me = %+v", me)
		}
	})
}

func TestGroupAndAttendanceFlow(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice", "+15550000001")
	_, bobToken := s.user(t, "bob", "+15550000002")

	group := s.createGroup(t, aliceToken)
	if len(group.Admins) != 1 || group.Admins[0].ID != alice.ID {
		t.Fatalf("admins = %+v", group.Admins)
	}
	if group.Activity == nil || group.Activity.RecurrenceRule != "FREQ=WEEKLY;BYDAY=TH" {
		t.Fatalf("activity = %+v", group.Activity)
	}

	upcomingPath := "/event/group/" + group.ID + "/upcoming"

	// Not yet a member
	assertError(t, s.do(t, http.MethodGet, upcomingPath, bobToken, nil), http.StatusForbidden, KindForbidden)

	rec := s.do(t, http.MethodGet, upcomingPath, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upcoming = %d: %s", rec.Code, rec.Body.String())
	}
	var event models.EventDetails
	decode(t, rec, &event)
	if event.Date.Weekday() != time.Thursday || event.Date.Hour() != 19 {
		t.Errorf("event date = %v, want a Thursday at 19:00", event.Date)
	}
	statusPath := "/api/event/" + event.ID + "/status"

	assertError(t, s.do(t, http.MethodPut, statusPath, bobToken, map[string]string{"status": "in"}),
		http.StatusForbidden, KindForbidden)
	assertError(t, s.do(t, http.MethodPut, statusPath, aliceToken, map[string]string{"status": "maybe"}),
		http.StatusBadRequest, KindInvalidInput)

	assertMessage(t, s.do(t, http.MethodPut, statusPath, aliceToken, map[string]string{"status": "in"}),
		"Successfully updated status to 'in'.")

	rec = s.do(t, http.MethodGet, upcomingPath, aliceToken, nil)
	decode(t, rec, &event)
	if len(event.Attendees) != 1 || event.Attendees[0].ID != alice.ID {
		t.Errorf("attendees = %+v", event.Attendees)
	}

	assertMessage(t, s.do(t, http.MethodPut, statusPath, aliceToken, map[string]string{"status": "undecided"}),
		"Successfully updated status to 'undecided'.")

	rec = s.do(t, http.MethodGet, upcomingPath, aliceToken, nil)
	event = models.EventDetails{}
	decode(t, rec, &event)
	if len(event.Attendees) != 0 || len(event.Absentees) != 0 {
		t.Errorf("undecided user still listed: %+v / %+v", event.Attendees, event.Absentees)
	}
}

func TestDeleteGroupRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.user(t, "alice", "+15550000001")
	_, bobToken := s.user(t, "bob", "+15550000002")
	group := s.createGroup(t, aliceToken)
	groupPath := "/group/" + group.ID

	assertMessage(t, s.do(t, http.MethodPost, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000002"}),
		"Registered user added to group.")
	assertMessage(t, s.do(t, http.MethodPost, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000009", "name": "Carol"}),
		"Non-registered member added to group.")

	assertError(t, s.do(t, http.MethodDelete, groupPath, bobToken, nil), http.StatusForbidden, KindForbidden)
	assertError(t, s.do(t, http.MethodPost, groupPath+"/members", bobToken, map[string]string{"phone": "+15550000003", "name": "Dan"}),
		http.StatusForbidden, KindForbidden)

	rec := s.do(t, http.MethodGet, groupPath, bobToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("group after rejected delete = %d: %s", rec.Code, rec.Body.String())
	}
	var unchanged models.GroupDetails
	decode(t, rec, &unchanged)
	if len(unchanged.Members) != 2 || len(unchanged.Guests) != 1 || unchanged.Activity == nil {
		t.Errorf("group changed by rejected delete: %+v", unchanged)
	}

	assertMessage(t, s.do(t, http.MethodDelete, groupPath, aliceToken, nil), "Group has been dissolved successfully.")
	assertError(t, s.do(t, http.MethodGet, groupPath, aliceToken, nil), http.StatusNotFound, KindNotFound)
}

func TestMembershipRoutes(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.user(t, "alice", "+15550000001")
	bob, bobToken := s.user(t, "bob", "+15550000002")
	group := s.createGroup(t, aliceToken)
	groupPath := "/api/group/" + group.ID

	s.do(t, http.MethodPost, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000002"})
	s.do(t, http.MethodPost, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000009", "name": "Carol"})

	assertMessage(t, s.do(t, http.MethodDelete, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000009"}),
		"Non-registered member removed.")
	assertError(t, s.do(t, http.MethodDelete, groupPath+"/members", aliceToken, map[string]string{}),
		http.StatusBadRequest, KindInvalidInput)
	assertMessage(t, s.do(t, http.MethodDelete, groupPath+"/members", aliceToken, map[string]string{"userId": bob.ID}),
		"Registered member removed.")

	s.do(t, http.MethodPost, groupPath+"/members", aliceToken, map[string]string{"phone": "+15550000002"})

	rec := s.do(t, http.MethodGet, "/users/me/groups", bobToken, nil)
	var groups []models.GroupSummary
	decode(t, rec, &groups)
	if len(groups) != 1 || groups[0].ID != group.ID {
		t.Errorf("bob's groups = %+v", groups)
	}

	assertMessage(t, s.do(t, http.MethodDelete, groupPath+"/leave", bobToken, nil), "Successfully left group.")
	assertError(t, s.do(t, http.MethodDelete, groupPath+"/leave", bobToken, nil), http.StatusForbidden, KindForbidden)
}

func TestActivityRoutes(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.user(t, "alice", "+15550000001")
	_, bobToken := s.user(t, "bob", "+15550000002")
	group := s.createGroup(t, aliceToken)
	activityPath := "/activity/" + group.Activity.ID

	assertError(t, s.do(t, http.MethodGet, activityPath, bobToken, nil), http.StatusForbidden, KindForbidden)
	assertError(t, s.do(t, http.MethodGet, "/activity/missing", aliceToken, nil), http.StatusNotFound, KindNotFound)

	assertError(t, s.do(t, http.MethodPut, activityPath, aliceToken, map[string]string{"recurrenceRule": "NOT_A_RULE"}),
		http.StatusBadRequest, KindValidation)
	assertError(t, s.do(t, http.MethodPut, activityPath, aliceToken, map[string]string{}),
		http.StatusBadRequest, KindInvalidInput)

	rec := s.do(t, http.MethodGet, activityPath, aliceToken, nil)
	var activity models.Activity
	decode(t, rec, &activity)
	if activity.RecurrenceRule != "FREQ=WEEKLY;BYDAY=TH" {
		t.Errorf("rule changed by rejected update: %q", activity.RecurrenceRule)
	}

	rec = s.do(t, http.MethodPut, activityPath, aliceToken, map[string]string{"name": "Thursday Scrimmage"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &activity)
	if activity.Name != "Thursday Scrimmage" {
		t.Errorf("name = %q", activity.Name)
	}

	assertMessage(t, s.do(t, http.MethodDelete, activityPath, aliceToken, nil), "Activity was successfully deleted.")
	assertError(t, s.do(t, http.MethodGet, "/event/group/"+group.ID+"/upcoming", aliceToken, nil),
		http.StatusNotFound, KindNotFound)
}

func TestProfileRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.user(t, "alice", "+15550000001")

	rec := s.do(t, http.MethodPut, "/users/profile", aliceToken, map[string]string{"bio": "Left back"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/users/profile/"+alice.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public profile = %d: %s", rec.Code, rec.Body.String())
	}
	var profile models.PublicProfile
	decode(t, rec, &profile)
	if profile.FirstName != "alice" || profile.Bio != "Left back" {
		t.Errorf("profile = %+v", profile)
	}
	if strings.Contains(rec.Body.String(), "+15550000001") {
		t.Error("public profile exposes the phone number")
	}

	assertError(t, s.do(t, http.MethodGet, "/users/profile/missing", "", nil), http.StatusNotFound, KindNotFound)
}

func TestSyncUserWebhook(t *testing.T) {
	s := newTestServer(t)

	payload := func(id, phone string) []byte {
		return []byte(`{"type":"user.created","data":{"id":"` + id + `","first_name":"Erin","last_name":"Stone",` +
			`"image_url":"https://img.example.com/erin.png","phone_numbers":[{"phone_number":"` + phone + `"}],` +
			`"email_addresses":[{"email_address":"erin@example.com"}]}}`)
	}
	send := func(body []byte, signed bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/users/sync", bytes.NewReader(body))
		now := time.Now()
		req.Header.Set("svix-id", "msg_1")
		req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
		if signed {
			req.Header.Set("svix-signature", s.webhook.Sign("msg_1", now, body))
		} else {
			req.Header.Set("svix-signature", "v1,forged")
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	assertError(t, send(payload("user_erin", "+15550000005"), false), http.StatusUnauthorized, KindUnauthorized)

	rec := send(payload("user_erin", "+15550000005"), true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sync = %d: %s", rec.Code, rec.Body.String())
	}
	var created syncResponse
	decode(t, rec, &created)
	if created.Message != "User synced successfully." || created.User == nil || created.User.FirstName != "Erin" {
		t.Errorf("sync response = %+v", created)
	}

	assertMessage(t, send(payload("user_erin", "+15550000005"), true), "User already exists.")
	assertError(t, send(payload("user_frank", ""), true), http.StatusBadRequest, KindInvalidInput)
	assertError(t, send(payload("user_gina", "+15550000005"), true), http.StatusBadRequest, KindValidation)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rollcall_http_requests_total") || !strings.Contains(body, `route="GET /health"`) {
		t.Errorf("metrics output missing the health request:\n%s", body)
	}
}
