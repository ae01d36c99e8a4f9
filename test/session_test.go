//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/builtbymaxim/healthpulse/internal/session"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the single redis key the live session snapshot lives under, the
// session tests poke at it directly to check persistence
const activeSessionRedisKey = "healthpulse-session-active"

func (s *IntegrationTestSuite) startSessionRequest(ctx context.Context, params session.StartParams) session.Status {
	paramsJson, err := json.Marshal(params)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/start", serverEndpoint),
		bytes.NewReader(paramsJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var status session.Status
	require.NoError(s.T(), json.Unmarshal(respBytes, &status))
	return status
}

func (s *IntegrationTestSuite) sessionStatusRequest(ctx context.Context) session.Status {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/session", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var status session.Status
	require.NoError(s.T(), json.Unmarshal(respBytes, &status))
	return status
}

func (s *IntegrationTestSuite) pauseSessionRequest(ctx context.Context) session.Status {
	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/pause", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var status session.Status
	require.NoError(s.T(), json.Unmarshal(respBytes, &status))
	return status
}

func (s *IntegrationTestSuite) resumeSessionRequest(ctx context.Context) session.Status {
	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/resume", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var status session.Status
	require.NoError(s.T(), json.Unmarshal(respBytes, &status))
	return status
}

func (s *IntegrationTestSuite) sendFixRequest(ctx context.Context, fix session.Fix) session.FixResult {
	fixJson, err := json.Marshal(fix)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/fix", serverEndpoint),
		bytes.NewReader(fixJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var result session.FixResult
	require.NoError(s.T(), json.Unmarshal(respBytes, &result))
	return result
}

func (s *IntegrationTestSuite) finishSessionRequest(ctx context.Context, params session.FinishParams) session.Summary {
	paramsJson, err := json.Marshal(params)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/finish", serverEndpoint),
		bytes.NewReader(paramsJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var summary session.Summary
	require.NoError(s.T(), json.Unmarshal(respBytes, &summary))
	return summary
}

func (s *IntegrationTestSuite) discardSessionRequest(ctx context.Context) {
	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/session/discard", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	require.NoError(s.T(), resp.Body.Close())
}

// deviceRequestStatusCode fires a device request and only reports the
// response status and trimmed body, for the cases where the request is
// expected to be refused.
func (s *IntegrationTestSuite) deviceRequestStatusCode(ctx context.Context, method, path string, body []byte) (int, string) {
	req, err := http.NewRequestWithContext(
		ctx,
		method, serverEndpoint+path,
		bytes.NewReader(body),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "HealthPulse/1.2")
	req.Header.Set("Authorization", testDeviceAppSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	return resp.StatusCode, strings.TrimSpace(string(respBytes))
}

func (s *IntegrationTestSuite) TestSession_LiveTracking() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// nothing is running yet
	statusCode, body := s.deviceRequestStatusCode(ctx, "GET", "/session", nil)
	require.Equal(t, http.StatusNotFound, statusCode)
	assert.Equal(t, "no active session", body)

	started := s.startSessionRequest(ctx, session.StartParams{WorkoutType: "running"})
	require.NotEmpty(t, started.SessionID)
	assert.Equal(t, "running", started.WorkoutType)
	assert.False(t, started.Paused)
	assert.Zero(t, started.TotalDistanceMeters)

	// only one session at a time
	statusCode, body = s.deviceRequestStatusCode(ctx, "POST", "/session/start", []byte(`{"workoutType":"yoga"}`))
	require.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, "a session is already active", body)

	// the first usable fix only sets the baseline
	res := s.sendFixRequest(ctx, session.Fix{Latitude: 44.8000, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.Zero(t, res.DeltaMeters)
	assert.Zero(t, res.TotalDistanceMeters)

	// ~33.36m straight north
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8003, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.InDelta(t, 33.36, res.DeltaMeters, 0.05)
	assert.InDelta(t, 33.36, res.TotalDistanceMeters, 0.05)

	// imprecise fix changes nothing
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8004, Longitude: 20.4000, Accuracy: 35})
	assert.False(t, res.Accepted)
	assert.InDelta(t, 33.36, res.TotalDistanceMeters, 0.05)

	// an 11km teleport is a glitch, the baseline stays where it was
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.9000, Longitude: 20.4000, Accuracy: 5})
	assert.False(t, res.Accepted)
	assert.InDelta(t, 33.36, res.TotalDistanceMeters, 0.05)

	// the next sane fix is measured against the pre-glitch baseline
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8006, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.InDelta(t, 33.36, res.DeltaMeters, 0.05)
	assert.InDelta(t, 66.72, res.TotalDistanceMeters, 0.1)

	// the snapshot sits in redis the whole time
	existing, err := s.redisClient.Exists(ctx, activeSessionRedisKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, existing)

	paused := s.pauseSessionRequest(ctx)
	assert.True(t, paused.Paused)

	// pausing twice is refused
	statusCode, body = s.deviceRequestStatusCode(ctx, "POST", "/session/pause", nil)
	require.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, "session is already paused", body)

	// fixes during a pause are silently dropped
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8009, Longitude: 20.4000, Accuracy: 5})
	assert.False(t, res.Accepted)
	assert.InDelta(t, 66.72, res.TotalDistanceMeters, 0.1)

	// elapsed time is frozen while paused
	time.Sleep(1100 * time.Millisecond)
	pausedLater := s.sessionStatusRequest(ctx)
	assert.Equal(t, paused.ElapsedSeconds, pausedLater.ElapsedSeconds)
	assert.Equal(t, paused.FixesSeen, pausedLater.FixesSeen)

	resumed := s.resumeSessionRequest(ctx)
	assert.False(t, resumed.Paused)

	statusCode, body = s.deviceRequestStatusCode(ctx, "POST", "/session/resume", nil)
	require.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, "session is not paused", body)

	// after a resume the baseline is gone: even a far away fix only
	// re-establishes the reference point
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8020, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.Zero(t, res.DeltaMeters)
	assert.InDelta(t, 66.72, res.TotalDistanceMeters, 0.1)

	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8023, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.InDelta(t, 33.36, res.DeltaMeters, 0.05)
	assert.InDelta(t, 100.08, res.TotalDistanceMeters, 0.15)

	preFinish := s.sessionStatusRequest(ctx)
	assert.Equal(t, 7, preFinish.FixesSeen)
	assert.Equal(t, 5, preFinish.FixesAccepted)
	assert.Greater(t, preFinish.ElapsedSeconds, paused.ElapsedSeconds)

	summary := s.finishSessionRequest(ctx, session.FinishParams{
		Notes:             "morning run by the river",
		EstimatedCalories: 420,
	})
	assert.Equal(t, started.SessionID, summary.SessionID)
	assert.Equal(t, "running", summary.WorkoutType)
	assert.Equal(t, 1, summary.DurationMinutes)
	assert.InDelta(t, 100.08, summary.DistanceMeters, 0.15)
	assert.Equal(t, 420, summary.EstimatedCalories)
	assert.Equal(t, "morning run by the river", summary.Notes)

	// finished means gone, snapshot included
	existing, err = s.redisClient.Exists(ctx, activeSessionRedisKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, existing)

	statusCode, body = s.deviceRequestStatusCode(ctx, "GET", "/session", nil)
	require.Equal(t, http.StatusNotFound, statusCode)
	assert.Equal(t, "no active session", body)

	statusCode, _ = s.deviceRequestStatusCode(ctx, "POST", "/session/finish", []byte(`{}`))
	require.Equal(t, http.StatusNotFound, statusCode)

	// and the workout log got the session
	logged := s.getWorkoutBySessionRequest(ctx, summary.SessionID)
	assert.Equal(t, summary.SessionID, logged.SessionID)
	assert.EqualValues(t, "running", logged.Type)
	assert.Equal(t, 1, logged.DurationMinutes)
	assert.InDelta(t, 100.08, logged.DistanceMeters, 0.15)
	assert.Equal(t, 420, logged.EstimatedCalories)
	assert.Equal(t, "morning run by the river", logged.Notes)
	assert.WithinDuration(t, summary.StartedAt, logged.StartedAt, time.Second)
}

func (s *IntegrationTestSuite) TestSession_DiscardedSessionNotLogged() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := s.startSessionRequest(ctx, session.StartParams{WorkoutType: "cycling"})
	require.NotEmpty(t, started.SessionID)

	res := s.sendFixRequest(ctx, session.Fix{Latitude: 44.8000, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)

	s.discardSessionRequest(ctx)

	statusCode, body := s.deviceRequestStatusCode(ctx, "GET", "/session", nil)
	require.Equal(t, http.StatusNotFound, statusCode)
	assert.Equal(t, "no active session", body)

	existing, err := s.redisClient.Exists(ctx, activeSessionRedisKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, existing)

	// nothing submitted to the workout log
	statusCode, body = s.deviceRequestStatusCode(ctx, "GET", "/workouts/session/"+started.SessionID, nil)
	require.Equal(t, http.StatusNotFound, statusCode)
	assert.Equal(t, "workout not found", body)
}

func (s *IntegrationTestSuite) TestSession_DeviceAuth() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("wrong device secret", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/session", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "HealthPulse/1.2")
		req.Header.Set("Authorization", "not-the-secret")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "no can do", strings.TrimSpace(string(respBytes)))
	})

	t.Run("web client without token", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/session", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Origin", "test")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("web client with logged in token", func(t *testing.T) {
		token := doLogin(ctx, t)

		req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/session", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Origin", "test")
		req.Header.Set("X-HP-TOKEN", token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		// logged in fine, there is just no session to show
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func (s *IntegrationTestSuite) TestSession_FixStream() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsEndpoint := fmt.Sprintf("ws://%s:%d/session/stream", serverHost, serverPort)

	t.Run("handshake without credentials refused", func(t *testing.T) {
		header := http.Header{}
		header.Set("User-Agent", "Mozilla/5.0")

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsEndpoint, header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Nil(t, conn)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})

	started := s.startSessionRequest(ctx, session.StartParams{WorkoutType: "running"})
	require.NotEmpty(t, started.SessionID)

	t.Run("device fix stream", func(t *testing.T) {
		header := http.Header{}
		header.Set("User-Agent", "HealthPulse/1.2")
		header.Set("Authorization", testDeviceAppSecret)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsEndpoint, header)
		require.NoError(t, err)
		defer func() {
			require.NoError(t, conn.Close())
		}()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

		require.NoError(t, conn.WriteJSON(session.Fix{Latitude: 44.8000, Longitude: 20.4000, Accuracy: 5}))
		var first session.FixResult
		require.NoError(t, conn.ReadJSON(&first))
		assert.True(t, first.Accepted)
		assert.Zero(t, first.DeltaMeters)

		require.NoError(t, conn.WriteJSON(session.Fix{Latitude: 44.8003, Longitude: 20.4000, Accuracy: 5}))
		var second session.FixResult
		require.NoError(t, conn.ReadJSON(&second))
		assert.True(t, second.Accepted)
		assert.InDelta(t, 33.36, second.DeltaMeters, 0.05)
		assert.InDelta(t, 33.36, second.TotalDistanceMeters, 0.05)

		// bad fixes get acked too, just not counted
		require.NoError(t, conn.WriteJSON(session.Fix{Latitude: 44.8004, Longitude: 20.4000, Accuracy: 80}))
		var third session.FixResult
		require.NoError(t, conn.ReadJSON(&third))
		assert.False(t, third.Accepted)
		assert.InDelta(t, 33.36, third.TotalDistanceMeters, 0.05)
	})

	s.discardSessionRequest(ctx)
}

func (s *IntegrationTestSuite) TestSession_SurvivesRestart() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := s.startSessionRequest(ctx, session.StartParams{WorkoutType: "walking"})
	require.NotEmpty(t, started.SessionID)

	res := s.sendFixRequest(ctx, session.Fix{Latitude: 44.8000, Longitude: 20.4000, Accuracy: 5})
	require.True(t, res.Accepted)
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8003, Longitude: 20.4000, Accuracy: 5})
	require.True(t, res.Accepted)

	beforeRestart := s.sessionStatusRequest(ctx)
	assert.InDelta(t, 33.36, beforeRestart.TotalDistanceMeters, 0.05)

	// take the whole server down and boot a fresh one against the same
	// redis and postgres, like a deploy in the middle of a workout
	s.server.GracefulShutdown()
	require.NoError(t, s.startServer(context.Background()))

	afterRestart := s.sessionStatusRequest(ctx)
	assert.Equal(t, started.SessionID, afterRestart.SessionID)
	assert.Equal(t, "walking", afterRestart.WorkoutType)
	assert.False(t, afterRestart.Paused)
	assert.WithinDuration(t, beforeRestart.StartedAt, afterRestart.StartedAt, time.Millisecond)
	assert.InDelta(t, 33.36, afterRestart.TotalDistanceMeters, 0.05)
	assert.Equal(t, beforeRestart.FixesSeen, afterRestart.FixesSeen)
	assert.Equal(t, beforeRestart.FixesAccepted, afterRestart.FixesAccepted)
	// the clock kept running through the downtime
	assert.Greater(t, afterRestart.ElapsedSeconds, beforeRestart.ElapsedSeconds)

	// the fix baseline does not survive the restart: whatever the watch
	// did while we were gone must not count as distance
	res = s.sendFixRequest(ctx, session.Fix{Latitude: 44.8050, Longitude: 20.4000, Accuracy: 5})
	assert.True(t, res.Accepted)
	assert.Zero(t, res.DeltaMeters)
	assert.InDelta(t, 33.36, res.TotalDistanceMeters, 0.05)

	s.discardSessionRequest(ctx)
}
