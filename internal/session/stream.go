package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=stream_mocks_test.go -package=session_test

type fixObserver interface {
	Observe(ctx context.Context, fix Fix) (*FixResult, error)
}

type loginChecker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

type StreamErrorMessage struct {
	Error string `json:"error"`
}

// StreamHandler accepts a websocket connection from the tracking device
// and feeds every received fix to the tracker, acking each one with its
// FixResult. The stream path bypasses the auth middleware because
// browser websocket clients cannot set request headers, so the handler
// checks credentials itself before upgrading: either the device app
// secret in the Authorization header or a logged-in token in the
// "token" query parameter.
type StreamHandler struct {
	tracker         fixObserver
	loginChecker    loginChecker
	deviceAppSecret string
	upgrader        websocket.Upgrader
}

func NewStreamHandler(
	tracker fixObserver,
	loginChecker loginChecker,
	deviceAppSecret string,
) *StreamHandler {
	return &StreamHandler{
		tracker:         tracker,
		loginChecker:    loginChecker,
		deviceAppSecret: deviceAppSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// credentials are checked instead of the origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (handler *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !handler.authorized(r) {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has written the error response already
		log.Errorf("fix stream upgrade: %s", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnf("fix stream close: %s", err)
		}
	}()

	log.Debugf("fix stream opened for %s", r.RemoteAddr)

	for {
		var fix Fix
		if err := conn.ReadJSON(&fix); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Errorf("fix stream read: %s", err)
			} else {
				log.Debugf("fix stream closed for %s", r.RemoteAddr)
			}
			return
		}

		result, err := handler.tracker.Observe(ctx, fix)
		if err != nil {
			if writeErr := conn.WriteJSON(StreamErrorMessage{Error: err.Error()}); writeErr != nil {
				log.Errorf("fix stream write error message: %s", writeErr)
				return
			}
			// without a session there is nothing left to stream to
			if errors.Is(err, ErrNoSession) {
				return
			}
			continue
		}

		if err := conn.WriteJSON(result); err != nil {
			log.Errorf("fix stream write: %s", err)
			return
		}
	}
}

func (handler *StreamHandler) authorized(r *http.Request) bool {
	userAgent := r.Header.Get("User-Agent")
	authToken := r.Header.Get("Authorization")
	if strings.HasPrefix(userAgent, "HealthPulse/") && authToken != "" && authToken == handler.deviceAppSecret {
		return true
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		return false
	}

	isLogged, err := handler.loginChecker.IsLogged(r.Context(), token)
	if err != nil {
		log.Tracef("fix stream, check login session: %s", err)
		return false
	}
	return isLogged
}
