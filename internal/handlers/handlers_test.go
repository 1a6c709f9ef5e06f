package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"hospital-followup-server/internal/config"
	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store/memstore"
	"hospital-followup-server/internal/utils"
	"hospital-followup-server/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fixedNow is a Monday at noon UTC.
var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeWorkflow struct {
	html   []byte
	err    error
	manual []workflow.ManualReminder
	asked  []uint
}

func (f *fakeWorkflow) PatientDashboard(ctx context.Context, patientID uint) ([]byte, error) {
	f.asked = append(f.asked, patientID)
	return f.html, f.err
}

func (f *fakeWorkflow) SendManualReminder(ctx context.Context, r workflow.ManualReminder) error {
	f.manual = append(f.manual, r)
	return f.err
}

type testServer struct {
	t      *testing.T
	store  *memstore.Store
	wf     *fakeWorkflow
	cfg    *config.Config
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		AuthMode:        config.AuthModeToken,
		FallbackOwnerID: 1,
		JWTSecret:       "test-secret",
		JWTExpiresIn:    24 * time.Hour,
		SessionTTL:      24 * time.Hour,
	}
	st := memstore.New()
	st.Now = func() time.Time { return fixedNow }
	wf := &fakeWorkflow{html: []byte("<html>dash</html>")}
	now := func() time.Time { return fixedNow }

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn, now)
	auth := middleware.NewAuthenticator(cfg, tokens, st)

	authH := NewAuthHandler(st, tokens, cfg)
	authH.Now = now
	patientH := NewPatientHandler(st, wf)
	patientH.Now = now
	statsH := NewStatsHandler(st)
	statsH.Now = now
	reminderH := NewReminderHandler(st, wf)
	reminderH.Now = now

	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", NewHealthHandler(st).Health)
	api.POST("/auth/signup", authH.Signup)
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", auth.RequireAuth(), authH.Logout)
	api.GET("/auth/profile", auth.RequireAuth(), authH.GetProfile)

	api.GET("/patients/", patientH.ListPatientOptions)
	api.POST("/patients/register", auth.OptionalAuth(), patientH.RegisterPatient)
	api.GET("/patients/stats/analytics", statsH.Analytics)
	api.GET("/patients/all", auth.RequireAuth(), patientH.GetPatients)
	api.GET("/patients/stats/dashboard", auth.RequireAuth(), statsH.DashboardStats)
	api.POST("/patients/mark-done", auth.RequireAuth(), patientH.MarkFollowupDone)
	api.GET("/patients/patients/:id/dashboard", auth.RequireAuth(), patientH.PatientDashboard)
	api.GET("/patients/:id", auth.RequireAuth(), patientH.GetPatientByID)
	api.PUT("/patients/:id", auth.RequireAuth(), patientH.UpdatePatient)
	api.DELETE("/patients/:id", auth.RequireAuth(), patientH.DeletePatient)

	api.GET("/reminders/upcoming", reminderH.Upcoming)
	api.POST("/reminders/create", reminderH.Create)
	api.PUT("/reminders/update-status/:id", reminderH.UpdateStatus)
	api.GET("/reminders/dashboard", auth.RequireAuth(), reminderH.Dashboard)
	api.GET("/reminders/logs/:reminderId", auth.RequireAuth(), reminderH.Logs)
	api.POST("/reminders/send-manual", auth.RequireAuth(), reminderH.SendManual)

	return &testServer{t: t, store: st, wf: wf, cfg: cfg, router: r}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func readJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func readArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func requireMessage(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got, _ := readJSON(t, w)["message"].(string); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func signupBody(email string) map[string]string {
	return map[string]string{
		"hospitalName":    "St. Mary",
		"hospitalAddress": "1 Main St",
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"password":        "correct-horse",
	}
}

// login signs up a manager and returns a bearer token and the account id.
func (s *testServer) login(email string) (string, uint) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/signup", "", signupBody(email))
	requireStatus(s.t, w, http.StatusCreated)
	id := uint(readJSON(s.t, w)["userId"].(float64))

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "correct-horse"})
	requireStatus(s.t, w, http.StatusOK)
	return readJSON(s.t, w)["token"].(string), id
}

func patientBody(name, next string) map[string]interface{} {
	return map[string]interface{}{
		"name":           name,
		"age":            54,
		"gender":         "Female",
		"contact":        "555-0100",
		"mail":           "p@example.com",
		"condition_type": "Diabetes",
		"glucose":        140.5,
		"diabetes":       true,
		"visit_date":     "2024-06-01",
		"next_followup":  next,
	}
}

func (s *testServer) register(token, name, next string) uint {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/patients/register", token, patientBody(name, next))
	requireStatus(s.t, w, http.StatusCreated)
	return uint(readJSON(s.t, w)["patientId"].(float64))
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/signup", "", signupBody("ada@example.com"))
	requireStatus(t, w, http.StatusCreated)
	body := readJSON(t, w)
	if body["message"] != "Account created successfully" {
		t.Errorf("message = %v", body["message"])
	}

	account, err := s.store.FindAccountByID(context.Background(), uint(body["userId"].(float64)))
	if err != nil {
		t.Fatalf("account not stored: %v", err)
	}
	if account.PasswordHash == "correct-horse" || !account.CheckPassword("correct-horse") {
		t.Error("password hash does not verify or equals plaintext")
	}
	if account.Role != models.RoleManager || !account.IsActive {
		t.Errorf("account = %+v", account)
	}

	audit := s.store.AuditLogs()
	if len(audit) != 1 || audit[0].Action != models.AuditSignup {
		t.Errorf("audit = %+v", audit)
	}

	w = s.do(http.MethodPost, "/api/auth/signup", "", signupBody("ada@example.com"))
	requireStatus(t, w, http.StatusConflict)
	requireMessage(t, w, "Email already registered")
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)

	missing := signupBody("a@b.io")
	delete(missing, "hospitalAddress")
	badEmail := signupBody("not-an-email")
	short := signupBody("a@b.io")
	short["password"] = "short"

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing field", missing, "All fields are required"},
		{"bad email", badEmail, "Invalid email format"},
		{"short password", short, "Password must be at least 8 characters long"},
		{"empty body", "", "All fields are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/auth/signup", "", tt.body)
			requireStatus(t, w, http.StatusBadRequest)
			requireMessage(t, w, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	token, id := s.login("ada@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	account, _ := s.store.FindAccountByID(context.Background(), id)
	if account.LastLogin == nil || !account.LastLogin.Equal(fixedNow) {
		t.Errorf("last login = %v", account.LastLogin)
	}
	if s.store.SessionCount() != 1 {
		t.Errorf("sessions = %d", s.store.SessionCount())
	}

	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	user := readJSON(t, w)["user"].(map[string]interface{})
	if user["email"] != "ada@example.com" || user["hospitalName"] != "St. Mary" || user["role"] != "manager" {
		t.Errorf("user = %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash leaked")
	}
}

func TestLogin_SameMessageForUnknownEmailAndWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.login("ada@example.com")

	wrong := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	unknown := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "who@example.com", "password": "correct-horse"})

	requireStatus(t, wrong, http.StatusUnauthorized)
	requireStatus(t, unknown, http.StatusUnauthorized)
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %s vs %s", wrong.Body.String(), unknown.Body.String())
	}
	requireMessage(t, wrong, "Invalid email or password")
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	s := newTestServer(t)
	account := models.Account{Email: "off@example.com", Role: models.RoleManager, IsActive: false}
	if err := account.SetPassword("correct-horse"); err != nil {
		t.Fatal(err)
	}
	if err := s.store.CreateAccount(context.Background(), &account); err != nil {
		t.Fatal(err)
	}

	for _, pw := range []string{"correct-horse", "wrong-password"} {
		w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "off@example.com", "password": pw})
		requireStatus(t, w, http.StatusForbidden)
		requireMessage(t, w, "Account is deactivated. Contact support.")
	}
}

func TestLogoutAndProfile(t *testing.T) {
	s := newTestServer(t)
	token, id := s.login("ada@example.com")

	w := s.do(http.MethodGet, "/api/auth/profile", token, nil)
	requireStatus(t, w, http.StatusOK)
	user := readJSON(t, w)["user"].(map[string]interface{})
	if uint(user["id"].(float64)) != id || user["lastLogin"] == nil {
		t.Errorf("profile = %v", user)
	}

	requireStatus(t, s.do(http.MethodGet, "/api/auth/profile", "", nil), http.StatusUnauthorized)

	w = s.do(http.MethodPost, "/api/auth/logout", token, nil)
	requireStatus(t, w, http.StatusOK)
	requireMessage(t, w, "Logout successful")
	if s.store.SessionCount() != 0 {
		t.Errorf("session not deleted")
	}
	audit := s.store.AuditLogs()
	if last := audit[len(audit)-1]; last.Action != models.AuditLogout || last.AccountID != id {
		t.Errorf("last audit = %+v", last)
	}

	// Logging out twice is fine; the signed token is still the source of truth.
	requireStatus(t, s.do(http.MethodPost, "/api/auth/logout", token, nil), http.StatusOK)
}

func TestRegisterPatient_Status(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")

	tests := []struct {
		next string
		want models.FollowupStatus
	}{
		{"2024-06-10", models.StatusToday},
		{"2024-06-12", models.StatusPending},
		{"2024-06-13", models.StatusPending},
		{"2024-06-20", models.StatusScheduled},
		{"2024-06-09", models.StatusOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			id := s.register(token, "P "+tt.next, tt.next)
			w := s.do(http.MethodGet, "/api/patients/"+itoa(id), token, nil)
			requireStatus(t, w, http.StatusOK)
			patient := readJSON(t, w)["patient"].(map[string]interface{})
			if patient["status"] != string(tt.want) {
				t.Errorf("status = %v, want %s", patient["status"], tt.want)
			}
			if patient["next_followup"] != tt.next {
				t.Errorf("next_followup = %v", patient["next_followup"])
			}
		})
	}
}

func TestRegisterPatient_Validation(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")

	missing := patientBody("Ann", "2024-06-12")
	delete(missing, "contact")
	w := s.do(http.MethodPost, "/api/patients/register", token, missing)
	requireStatus(t, w, http.StatusBadRequest)
	requireMessage(t, w, requiredPatientFields)

	badDate := patientBody("Ann", "12/06/2024")
	w = s.do(http.MethodPost, "/api/patients/register", token, badDate)
	requireStatus(t, w, http.StatusBadRequest)
	requireMessage(t, w, "next_followup must be a date in YYYY-MM-DD format")

	requireStatus(t, s.do(http.MethodPost, "/api/patients/register", "", patientBody("Ann", "2024-06-12")), http.StatusUnauthorized)
}

func TestRegisterPatient_UnauthenticatedModeUsesFallbackOwner(t *testing.T) {
	s := newTestServer(t)
	s.cfg.AuthMode = config.AuthModeUnauthenticated

	id := s.register("", "Ann", "2024-06-12")
	if _, err := s.store.GetPatient(context.Background(), s.cfg.FallbackOwnerID, id); err != nil {
		t.Fatalf("patient not owned by fallback owner: %v", err)
	}
}

func TestPatientsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	ada, _ := s.login("ada@example.com")
	bob, _ := s.login("bob@example.com")

	late := s.register(ada, "Late", "2024-07-01")
	early := s.register(ada, "Early", "2024-06-11")
	other := s.register(bob, "Other", "2024-06-11")

	w := s.do(http.MethodGet, "/api/patients/all", ada, nil)
	requireStatus(t, w, http.StatusOK)
	patients := readJSON(t, w)["patients"].([]interface{})
	if len(patients) != 2 {
		t.Fatalf("ada sees %d patients", len(patients))
	}
	first := patients[0].(map[string]interface{})
	second := patients[1].(map[string]interface{})
	if uint(first["id"].(float64)) != early || uint(second["id"].(float64)) != late {
		t.Errorf("not ordered by next_followup: %v", patients)
	}

	path := "/api/patients/" + itoa(other)
	requireStatus(t, s.do(http.MethodGet, path, ada, nil), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodPut, path, ada, map[string]string{"name": "X"}), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodDelete, path, ada, nil), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodPost, "/api/patients/mark-done", ada, map[string]uint{"patientId": other}), http.StatusNotFound)

	// The dropdown listing is unscoped and ordered by name.
	w = s.do(http.MethodGet, "/api/patients/", "", nil)
	requireStatus(t, w, http.StatusOK)
	options := readArray(t, w)
	if len(options) != 3 || options[0]["name"] != "Early" || options[2]["name"] != "Other" {
		t.Errorf("options = %v", options)
	}
	if _, ok := options[0]["contact"]; ok {
		t.Error("dropdown leaks contact details")
	}
}

func TestUpdatePatient(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")
	id := s.register(token, "Ann", "2024-06-12")
	path := "/api/patients/" + itoa(id)

	w := s.do(http.MethodPut, path, token, map[string]interface{}{})
	requireStatus(t, w, http.StatusBadRequest)
	requireMessage(t, w, "No fields to update")

	// Only unknown or protected keys also count as empty.
	w = s.do(http.MethodPut, path, token, map[string]interface{}{"id": 99, "user_id": 2, "password_hash": "x"})
	requireStatus(t, w, http.StatusBadRequest)

	requireStatus(t, s.do(http.MethodPut, "/api/patients/999", token, map[string]string{"name": "X"}), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodPut, path, token, map[string]string{"status": "Bogus"}), http.StatusBadRequest)

	w = s.do(http.MethodPut, path, token, map[string]interface{}{
		"name":          "Ann Smith",
		"heart_rate":    72.0,
		"next_followup": "2024-06-30",
		"user_id":       2,
	})
	requireStatus(t, w, http.StatusOK)
	requireMessage(t, w, "Patient updated successfully")

	patient, err := s.store.GetPatient(context.Background(), readOwner(t, s, token), id)
	if err != nil {
		t.Fatalf("owner changed: %v", err)
	}
	if patient.Name != "Ann Smith" || patient.HeartRate == nil || *patient.HeartRate != 72 || patient.NextFollowup.String() != "2024-06-30" {
		t.Errorf("patient = %+v", patient)
	}
}

func readOwner(t *testing.T, s *testServer, token string) uint {
	t.Helper()
	w := s.do(http.MethodGet, "/api/auth/profile", token, nil)
	return uint(readJSON(t, w)["user"].(map[string]interface{})["id"].(float64))
}

func TestMarkDoneAndDelete(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")
	id := s.register(token, "Ann", "2024-06-12")

	w := s.do(http.MethodPost, "/api/patients/mark-done", token, map[string]uint{"patientId": id})
	requireStatus(t, w, http.StatusOK)
	requireMessage(t, w, "Follow-up marked as completed")

	patient := readJSON(t, s.do(http.MethodGet, "/api/patients/"+itoa(id), token, nil))["patient"].(map[string]interface{})
	if patient["status"] != "Completed" || patient["next_followup"] != "2024-06-12" {
		t.Errorf("patient = %v", patient)
	}

	requireStatus(t, s.do(http.MethodPost, "/api/patients/mark-done", token, map[string]uint{}), http.StatusBadRequest)

	requireStatus(t, s.do(http.MethodDelete, "/api/patients/"+itoa(id), token, nil), http.StatusOK)
	requireStatus(t, s.do(http.MethodGet, "/api/patients/"+itoa(id), token, nil), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodDelete, "/api/patients/"+itoa(id), token, nil), http.StatusNotFound)
	requireStatus(t, s.do(http.MethodGet, "/api/patients/abc", token, nil), http.StatusBadRequest)
}

func TestDashboardStats(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")
	other, _ := s.login("bob@example.com")

	s.register(token, "pending", "2024-06-12")
	s.register(token, "far", "2024-07-12")
	s.register(token, "missed", "2024-06-01")
	done := s.register(token, "done", "2024-06-05")
	s.register(other, "other", "2024-06-12")
	s.do(http.MethodPost, "/api/patients/mark-done", token, map[string]uint{"patientId": done})

	w := s.do(http.MethodGet, "/api/patients/stats/dashboard", token, nil)
	requireStatus(t, w, http.StatusOK)
	stats := readJSON(t, w)
	want := map[string]float64{"totalPatients": 4, "pendingFollowUps": 1, "completedToday": 1, "missedFollowUps": 1}
	for k, v := range want {
		if stats[k] != v {
			t.Errorf("%s = %v, want %v", k, stats[k], v)
		}
	}
}

func TestAnalytics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/patients/stats/analytics", "", nil)
	requireStatus(t, w, http.StatusOK)
	empty := readJSON(t, w)
	if empty["completionRate"] != 0.0 || empty["missedRate"] != 0.0 {
		t.Errorf("empty analytics = %v", empty)
	}

	token, _ := s.login("ada@example.com")
	s.register(token, "a", "2024-06-20")
	s.register(token, "b", "2024-06-20")
	s.register(token, "c", "2024-06-01")
	done := s.register(token, "d", "2024-06-20")
	s.do(http.MethodPost, "/api/patients/mark-done", token, map[string]uint{"patientId": done})

	stats := readJSON(t, s.do(http.MethodGet, "/api/patients/stats/analytics", "", nil))
	if stats["totalPatients"] != 4.0 || stats["completionRate"] != 25.0 || stats["missedFollowups"] != 1.0 || stats["missedRate"] != 25.0 {
		t.Errorf("analytics = %v", stats)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole, want int64
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.part, tt.whole); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.part, tt.whole, got, tt.want)
		}
	}
}

func TestPatientDashboardProxy(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ada@example.com")
	id := s.register(token, "Ann", "2024-06-12")

	w := s.do(http.MethodGet, "/api/patients/patients/"+itoa(id)+"/dashboard", token, nil)
	requireStatus(t, w, http.StatusOK)
	if w.Body.String() != "<html>dash</html>" || w.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("proxy response = %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}
	if len(s.wf.asked) != 1 || s.wf.asked[0] != id {
		t.Errorf("workflow asked for %v", s.wf.asked)
	}

	requireStatus(t, s.do(http.MethodGet, "/api/patients/patients/999/dashboard", token, nil), http.StatusNotFound)

	s.wf.err = workflow.ErrUpstream
	w = s.do(http.MethodGet, "/api/patients/patients/"+itoa(id)+"/dashboard", token, nil)
	requireStatus(t, w, http.StatusBadGateway)
	if readJSON(t, w)["error"] != utils.KindUpstream {
		t.Errorf("body = %s", w.Body.String())
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
