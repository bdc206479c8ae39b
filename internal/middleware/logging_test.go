package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRequest_GeneratesRequestID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	prevLevel := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(prevLevel)

	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	LogRequest()(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/exercise/log", nil))

	require.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rr.Header().Get(RequestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, seenID, entry.Data["request_id"])
	assert.Equal(t, http.StatusCreated, entry.Data["status"])
	assert.Equal(t, "/api/exercise/log", entry.Data["path"])
	assert.Equal(t, logrus.DebugLevel, entry.Level)
}

func TestLogRequest_KeepsIncomingRequestID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/exercise/add", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	LogRequest()(next).ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "abc-123", entry.Data["request_id"])
}
