package workout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/builtbymaxim/healthpulse/internal/session"
	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// LogClient submits finished live sessions to a remote workout log
// API, for setups where the log lives in another deployment. It is a
// drop in replacement for RepoSubmitter.
type LogClient struct {
	logApiURL       string
	deviceAppSecret string
	httpClient      *http.Client
}

func NewLogClient(logApiURL, deviceAppSecret string, httpClient *http.Client) *LogClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LogClient{
		logApiURL:       strings.TrimSuffix(logApiURL, "/"),
		deviceAppSecret: deviceAppSecret,
		httpClient:      httpClient,
	}
}

func (c *LogClient) Submit(ctx context.Context, summary session.Summary) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.logClient.submit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", summary.SessionID))

	workoutJson, err := json.Marshal(FromSummary(summary))
	if err != nil {
		return fmt.Errorf("marshal workout: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.logApiURL+"/workouts",
		bytes.NewReader(workoutJson),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HealthPulse/backend")
	req.Header.Set("Authorization", c.deviceAppSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		log.Infof("workout for session %s submitted to remote log", summary.SessionID)
		return nil
	case http.StatusConflict:
		// retried submission of an already logged session, all fine
		log.Warnf("workout for session %s already logged remotely", summary.SessionID)
		return nil
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBytes)
	}
}
