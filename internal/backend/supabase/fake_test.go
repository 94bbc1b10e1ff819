package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

const (
	testAnonKey = "anon-key"
	testSecret  = "test-secret"
)

type fakeUser struct {
	ID       string
	Email    string
	Password string
	Metadata map[string]any
}

type fakeHabit struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	TargetFrequency int       `json:"target_frequency"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

type fakeLog struct {
	ID      string `json:"id"`
	HabitID string `json:"habit_id"`
	LogDate string `json:"log_date"`
	Status  bool   `json:"status"`
}

// fakeSupabase is an in-memory GoTrue + PostgREST stand-in.
type fakeSupabase struct {
	t  *testing.T
	mu sync.Mutex

	requireConfirmation bool
	omitExpiry          bool

	users    map[string]*fakeUser // by email
	refresh  map[string]string    // refresh token -> user id
	habits   []*fakeHabit
	logs     []*fakeLog
	seq      int
	clock    time.Time
	requests []string
}

func newFakeSupabase(t *testing.T) (*fakeSupabase, *httptest.Server) {
	f := &fakeSupabase{
		t:       t,
		users:   map[string]*fakeUser{},
		refresh: map[string]string{},
		clock:   time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
	}

	r := mux.NewRouter()
	r.Use(f.requireAPIKey)
	auth := r.PathPrefix("/auth/v1").Subrouter()
	auth.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	auth.HandleFunc("/signup", f.signup).Methods(http.MethodPost)
	auth.HandleFunc("/token", f.token).Methods(http.MethodPost)
	auth.HandleFunc("/logout", f.logout).Methods(http.MethodPost)
	auth.HandleFunc("/user", f.user).Methods(http.MethodGet)

	rest := r.PathPrefix("/rest/v1").Subrouter()
	rest.HandleFunc("/habits", f.insertHabits).Methods(http.MethodPost)
	rest.HandleFunc("/habits", f.selectHabits).Methods(http.MethodGet)
	rest.HandleFunc("/habits", f.patchHabits).Methods(http.MethodPatch)
	rest.HandleFunc("/habit_logs", f.upsertLogs).Methods(http.MethodPost)
	rest.HandleFunc("/habit_logs", f.selectLogs).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSupabase) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		if r.Header.Get("apikey") != testAnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSupabase) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeSupabase) userJSON(u *fakeUser) map[string]any {
	return map[string]any{
		"id":                 u.ID,
		"email":              u.Email,
		"user_metadata":      u.Metadata,
		"created_at":         f.clock.Format(time.RFC3339),
		"email_confirmed_at": f.clock.Format(time.RFC3339),
	}
}

func (f *fakeSupabase) issue(u *fakeUser) map[string]any {
	exp := f.clock.Add(time.Hour)
	claims := jwt.RegisteredClaims{Subject: u.ID, ExpiresAt: jwt.NewNumericDate(exp)}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		f.t.Fatalf("sign token: %v", err)
	}
	refresh := f.nextID("refresh")
	f.refresh[refresh] = u.ID

	body := map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": refresh,
		"user":          f.userJSON(u),
	}
	if !f.omitExpiry {
		body["expires_in"] = 3600
		body["expires_at"] = exp.Unix()
	}
	return body
}

func (f *fakeSupabase) authUser(r *http.Request) (*fakeUser, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return f.clock }))
	if err != nil {
		return nil, false
	}
	for _, u := range f.users {
		if u.ID == claims.Subject {
			return u, true
		}
	}
	return nil, false
}

func (f *fakeSupabase) signup(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if _, ok := f.users[body.Email]; ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
		return
	}
	u := &fakeUser{ID: f.nextID("user"), Email: body.Email, Password: body.Password, Metadata: body.Data}
	f.users[body.Email] = u

	if f.requireConfirmation {
		writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email, "user_metadata": u.Metadata})
		return
	}
	writeJSON(w, http.StatusOK, f.issue(u))
}

func (f *fakeSupabase) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		u, ok := f.users[body.Email]
		if !ok || u.Password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, f.issue(u))
	case "refresh_token":
		id, ok := f.refresh[body.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found"})
			return
		}
		delete(f.refresh, body.RefreshToken)
		for _, u := range f.users {
			if u.ID == id {
				writeJSON(w, http.StatusOK, f.issue(u))
				return
			}
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "unsupported grant_type"})
	}
}

func (f *fakeSupabase) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	for tok, id := range f.refresh {
		if id == u.ID {
			delete(f.refresh, tok)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeSupabase) user(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	writeJSON(w, http.StatusOK, f.userJSON(u))
}

func (f *fakeSupabase) insertHabits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return
	}
	var rows []fakeHabit
	_ = json.NewDecoder(r.Body).Decode(&rows)

	var out []*fakeHabit
	for _, row := range rows {
		if row.UserID != u.ID {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": "42501", "message": `new row violates row-level security policy for table "habits"`})
			return
		}
		f.clock = f.clock.Add(time.Second)
		h := row
		h.ID = f.nextID("habit")
		h.IsActive = true
		h.CreatedAt = f.clock
		if h.TargetFrequency == 0 {
			h.TargetFrequency = 1
		}
		f.habits = append(f.habits, &h)
		out = append(out, &h)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (f *fakeSupabase) selectHabits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	if !ok {
		writeJSON(w, http.StatusOK, []fakeHabit{})
		return
	}
	q := r.URL.Query()
	out := []*fakeHabit{}
	for _, h := range f.habits {
		if h.UserID != u.ID || "eq."+h.UserID != q.Get("user_id") {
			continue
		}
		if q.Get("is_active") == "eq.true" && !h.IsActive {
			continue
		}
		out = append(out, h)
	}
	desc := q.Get("order") == "created_at.desc"
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeSupabase) patchHabits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, _ := f.authUser(r)
	var body struct {
		IsActive bool `json:"is_active"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	out := []*fakeHabit{}
	for _, h := range f.habits {
		if u != nil && h.ID == id && h.UserID == u.ID {
			h.IsActive = body.IsActive
			out = append(out, h)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeSupabase) ownsHabit(u *fakeUser, habitID string) bool {
	for _, h := range f.habits {
		if h.ID == habitID && h.UserID == u.ID {
			return true
		}
	}
	return false
}

func (f *fakeSupabase) upsertLogs(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return
	}
	if r.URL.Query().Get("on_conflict") != "habit_id,log_date" || !strings.Contains(r.Header.Get("Prefer"), "merge-duplicates") {
		writeJSON(w, http.StatusConflict, map[string]any{"code": "23505", "message": "duplicate key value violates unique constraint"})
		return
	}
	var rows []fakeLog
	_ = json.NewDecoder(r.Body).Decode(&rows)

	var out []*fakeLog
	for _, row := range rows {
		if !f.ownsHabit(u, row.HabitID) {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": "42501", "message": `new row violates row-level security policy for table "habit_logs"`})
			return
		}
		var existing *fakeLog
		for _, l := range f.logs {
			if l.HabitID == row.HabitID && l.LogDate == row.LogDate {
				existing = l
			}
		}
		if existing == nil {
			l := row
			l.ID = f.nextID("log")
			f.logs = append(f.logs, &l)
			existing = &l
		}
		existing.Status = row.Status
		out = append(out, existing)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (f *fakeSupabase) selectLogs(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.authUser(r)
	out := []*fakeLog{}
	if !ok {
		writeJSON(w, http.StatusOK, out)
		return
	}
	q := r.URL.Query()
	ids := strings.Split(strings.TrimSuffix(strings.TrimPrefix(q.Get("habit_id"), "in.("), ")"), ",")
	for _, l := range f.logs {
		if !f.ownsHabit(u, l.HabitID) {
			continue
		}
		if d := q.Get("log_date"); d != "" && "eq."+l.LogDate != d {
			continue
		}
		for _, id := range ids {
			if id == l.HabitID {
				out = append(out, l)
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeSupabase) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}
