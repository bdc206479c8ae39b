//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/exercisetracker/internal/tracker"
)

func (s *IntegrationTestSuite) doRequest(
	ctx context.Context,
	method, path string,
	form url.Values,
	headers map[string]string,
) (int, http.Header, []byte) {
	t := s.T()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, body)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, respBytes
}

func (s *IntegrationTestSuite) newUser(ctx context.Context, name string) tracker.User {
	t := s.T()
	status, _, respBytes := s.doRequest(ctx, http.MethodPost, "/api/exercise/new-user", url.Values{"username": {name}}, nil)
	require.Equal(t, http.StatusOK, status, string(respBytes))

	var user tracker.User
	require.NoError(t, json.Unmarshal(respBytes, &user))
	return user
}

func (s *IntegrationTestSuite) TestNewUser() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	name := gofakeit.Username() + gofakeit.DigitN(6)
	user := s.newUser(ctx, name)
	assert.Equal(t, name, user.Name)
	assert.NotEmpty(t, user.UserID)
	assert.False(t, user.CreatedAt.IsZero())

	// duplicate name
	status, _, respBytes := s.doRequest(ctx, http.MethodPost, "/api/exercise/new-user", url.Values{"username": {name}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"username already taken"}`, string(respBytes))

	// empty name
	status, _, respBytes = s.doRequest(ctx, http.MethodPost, "/api/exercise/new-user", url.Values{"username": {"  "}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(respBytes), `"username"`)

	var count int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE name = $1`, name).Scan(&count))
	assert.Equal(t, 1, count)
}

func (s *IntegrationTestSuite) TestAddExerciseAndLog() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	user := s.newUser(ctx, gofakeit.Username()+gofakeit.DigitN(6))

	for i, date := range []string{"2024-01-05", "2024-02-05", "2024-03-05", "2024-04-05"} {
		status, _, respBytes := s.doRequest(ctx, http.MethodPost, "/api/exercise/add", url.Values{
			"userId":      {user.UserID},
			"description": {fmt.Sprintf("workout number %d", i)},
			"duration":    {fmt.Sprintf("%d", 10*(i+1))},
			"date":        {date},
		}, nil)
		require.Equal(t, http.StatusOK, status, string(respBytes))
		assert.JSONEq(t, fmt.Sprintf(
			`{"userId":%q,"description":"workout number %d","duration":%d,"date":%q}`,
			user.UserID, i, 10*(i+1), date,
		), string(respBytes))
	}

	status, _, respBytes := s.doRequest(ctx, http.MethodGet, "/api/exercise/log?userId="+user.UserID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var exerciseLog tracker.ExerciseLog
	require.NoError(t, json.Unmarshal(respBytes, &exerciseLog))
	assert.Equal(t, user.UserID, exerciseLog.UserID)
	assert.Equal(t, 4, exerciseLog.Count)
	require.Len(t, exerciseLog.Logs, 4)
	assert.Equal(t, "workout number 0", exerciseLog.Logs[0].Description)

	// inclusive range
	status, _, respBytes = s.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/exercise/log?userId=%s&from=2024-02-05&to=2024-03-05", user.UserID), nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"_id":%q,"count":2,"logs":[
		{"description":"workout number 1","duration":20,"date":"2024-02-05"},
		{"description":"workout number 2","duration":30,"date":"2024-03-05"}
	]}`, user.UserID), string(respBytes))

	// from + limit
	status, _, respBytes = s.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/exercise/log?userId=%s&from=2024-02-01&limit=1", user.UserID), nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(respBytes, &exerciseLog))
	assert.Equal(t, 1, exerciseLog.Count)
	require.Len(t, exerciseLog.Logs, 1)
	assert.Equal(t, "2024-02-05", exerciseLog.Logs[0].Date.String())

	// unknown user reads as empty
	status, _, respBytes = s.doRequest(ctx, http.MethodGet, "/api/exercise/log?userId=nobody-here", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"_id":"nobody-here","count":0,"logs":[]}`, string(respBytes))
}

func (s *IntegrationTestSuite) TestAddExercise_Validation() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _, respBytes := s.doRequest(ctx, http.MethodPost, "/api/exercise/add", url.Values{
		"userId":      {"does-not-exist"},
		"description": {"abc"},
		"duration":    {"ten"},
		"date":        {"2024-13-01"},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `{"errors":{
		"userId":"user does-not-exist doesn't exist",
		"description":"description must be between 5 and 1000 characters long",
		"duration":"duration must be an integer",
		"date":"date must be a valid date (yyyy-mm-dd)"
	}}`, string(respBytes))

	var count int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercises WHERE user_id = $1`, "does-not-exist").Scan(&count))
	assert.Equal(t, 0, count)
}

func (s *IntegrationTestSuite) TestLog_InvalidParams() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _, _ := s.doRequest(ctx, http.MethodGet, "/api/exercise/log", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, respBytes := s.doRequest(ctx, http.MethodGet, "/api/exercise/log?userId=x&from=yesterday&limit=-2", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `{"errors":{
		"from":"from must be a valid date (yyyy-mm-dd)",
		"limit":"limit must be a positive integer"
	}}`, string(respBytes))
}

func (s *IntegrationTestSuite) TestNewUser_RateLimited() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	headers := map[string]string{"X-Real-Ip": "10.20.30.40"}
	for i := 0; i < testNewUserRateLimitPerMin; i++ {
		status, _, respBytes := s.doRequest(ctx, http.MethodPost, "/api/exercise/new-user",
			url.Values{"username": {fmt.Sprintf("rl-%s-%d", gofakeit.LetterN(8), i)}}, headers)
		require.Equal(t, http.StatusOK, status, string(respBytes))
	}

	status, respHeaders, _ := s.doRequest(ctx, http.MethodPost, "/api/exercise/new-user",
		url.Values{"username": {"rl-one-too-many"}}, headers)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, respHeaders.Get("Retry-After"))
}

func (s *IntegrationTestSuite) TestHealthAndIndex() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, headers, respBytes := s.doRequest(ctx, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","store":"ok","redis":"ok"}`, string(respBytes))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))

	status, _, respBytes = s.doRequest(ctx, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(respBytes), "Exercise tracker")
}
