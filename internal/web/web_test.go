package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtrgen/internal/config"
	"rtrgen/internal/schedule"
)

// writeFixtureSchedule writes a CSV whose single run lands on the next run
// Thursday relative to now, so the fixture is upcoming no matter when the
// test runs.
func writeFixtureSchedule(t *testing.T) string {
	t.Helper()

	// Compute "next Thursday" in the server's configured timezone so the
	// fixture stays upcoming even when the test host's local day differs.
	loc, err := time.LoadLocation(config.DefaultConfig().Timezone)
	require.NoError(t, err)
	next, err := schedule.NextRunDay(time.Now().In(loc), time.Thursday)
	require.NoError(t, err)

	csv := fmt.Sprintf(
		"Date,Meeting location,Surface,Special event,8k Route,8k Strava link,5k Route,5k Strava link\n"+
			"%s,Radcliffe market,\"Road, after dark\",,Riverside,https://x/8k,Park Loop,https://x/5k\n",
		next.Format("2006-01-02"),
	)

	path := filepath.Join(t.TempDir(), "schedule.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
	return path
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.SchedulePath = writeFixtureSchedule(t)
	return NewServer(cfg)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHandleRuns(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Runs []struct {
			Date         string `json:"date"`
			MeetingPoint string `json:"meeting_point"`
			Routes       []struct {
				Label string `json:"label"`
			} `json:"routes"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "Radcliffe market", resp.Runs[0].MeetingPoint)
	assert.Len(t, resp.Runs[0].Routes, 2)
}

func TestHandleMessage(t *testing.T) {
	s := newTestServer(t)

	t.Run("renders for the next run by default", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message?platform=WhatsApp", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp messageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Message, "*Meeting at:* Radcliffe market")
		assert.Contains(t, resp.Message, "• 8k – Riverside: https://x/8k")
		assert.Contains(t, resp.Message, "hi-vis")
		assert.Equal(t, 0, resp.Counter)
		assert.Contains(t, resp.FileName, "_WhatsApp.txt")
	})

	t.Run("identical requests render identical output", func(t *testing.T) {
		render := func() string {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message?platform=Email", nil))
			require.Equal(t, http.StatusOK, w.Code)
			var resp messageResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			return resp.Message
		}
		assert.Equal(t, render(), render())
	})

	t.Run("unknown platform is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message?platform=Twitter", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown tone is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message?platform=Email&tone=angry", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown date 404s", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message?platform=Email&date=1999-01-01", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestShuffleIsSessionScoped(t *testing.T) {
	s := newTestServer(t)

	shuffle := func(cookie *http.Cookie) (int, *http.Cookie) {
		req := httptest.NewRequest(http.MethodPost, "/api/shuffle", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Counter int `json:"counter"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		res := w.Result()
		for _, c := range res.Cookies() {
			if c.Name == sessionCookie {
				return resp.Counter, c
			}
		}
		return resp.Counter, cookie
	}

	message := func(cookie *http.Cookie) int {
		req := httptest.NewRequest(http.MethodGet, "/api/message?platform=Email", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp messageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Counter
	}

	// Session A shuffles twice.
	_, sessionA := shuffle(nil)
	counterA, _ := shuffle(sessionA)
	assert.Equal(t, 2, counterA)

	// Session B starts fresh: its counter is unaffected by A.
	counterB, sessionB := shuffle(nil)
	assert.Equal(t, 1, counterB)
	require.NotEqual(t, sessionA.Value, sessionB.Value)

	assert.Equal(t, 2, message(sessionA))
	assert.Equal(t, 1, message(sessionB))

	t.Run("reset returns the counter to zero", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/shuffle?reset=1", nil)
		req.AddCookie(sessionA)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, message(sessionA))
	})

	t.Run("shuffle requires POST", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shuffle", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestShuffleChangesRenderedMessage(t *testing.T) {
	s := newTestServer(t)

	message := func(cookie *http.Cookie) string {
		req := httptest.NewRequest(http.MethodGet, "/api/message?platform=WhatsApp", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp messageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Message
	}

	// Establish a session, then shuffle until the wording changes. A small
	// pool means two adjacent counters can collide, so allow a few tries.
	req := httptest.NewRequest(http.MethodPost, "/api/shuffle", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	baseline := message(session)
	changed := false
	for i := 0; i < 20 && !changed; i++ {
		shuffleReq := httptest.NewRequest(http.MethodPost, "/api/shuffle", nil)
		shuffleReq.AddCookie(session)
		sw := httptest.NewRecorder()
		s.Handler().ServeHTTP(sw, shuffleReq)
		require.Equal(t, http.StatusOK, sw.Code)

		if message(session) != baseline {
			changed = true
		}
	}
	assert.True(t, changed, "20 shuffles never changed the wording")
}

func TestCalendarEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "BEGIN:VEVENT")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SchedulePath = writeFixtureSchedule(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "club", Password: "secret"}
	s := NewServer(cfg)

	t.Run("health stays open", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("api requires credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid credentials pass", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.SetBasicAuth("club", "secret")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
