package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/maseda27/mealflow/configs"
)

const defaultInstagramBaseURL = "https://i.instagram.com"

// Fixed device fingerprint presented on every request so the account looks
// like one consistent real device.
const (
	igAppVersion = "269.0.0.18.75"
	igUserAgent  = "Instagram " + igAppVersion + " Android (26/8.0.0; 480dpi; 1080x1920; OnePlus; 6T; devitron; qcom; en_US; 314665256)"
	igResolution = "1080x1920"
	igDeviceID   = "android-6f2c5a8b9d3e41c7"
)

// Login is attempted at most this many times per process before giving up
// with a too-many-attempts failure.
const maxLoginAttempts = 3

// sessionState tracks where the publisher is in its login lifecycle.
type sessionState int

const (
	stateLoggedOut sessionState = iota
	stateSessionRestoring
	stateSessionExpired
	stateFreshLoginAttempt
	stateLoggedIn
	stateLoginFailed
)

// sessionCache is the on-disk session artifact. Opaque to everything but
// this service; one account per process.
type sessionCache struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token"`
	DeviceID  string `json:"device_id"`
}

type InstagramService interface {
	Login(ctx context.Context) bool
	LastError() string
	PostPhoto(ctx context.Context, image []byte, caption string) (string, error)
	ProbeSession(ctx context.Context) error
}

type instagramService struct {
	cfg config.Config

	baseURL    string
	http       *http.Client
	loginDelay time.Duration

	// mu guards the login transition and the session fields so concurrent
	// requests cannot race on the session file, the loggedIn flag, or the
	// credentials an in-flight upload is reading.
	mu            sync.Mutex
	state         sessionState
	loggedIn      bool
	loginAttempts int
	session       sessionCache
	lastError     string
}

func NewInstagramService(cfg config.Config) InstagramService {
	return &instagramService{
		cfg:        cfg,
		baseURL:    defaultInstagramBaseURL,
		http:       &http.Client{Timeout: 60 * time.Second},
		loginDelay: 3 * time.Second,
		state:      stateLoggedOut,
	}
}

func (s *instagramService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Login authenticates against Instagram, restoring the cached session when
// one exists. It reports failure with a boolean and records the detailed
// error for LastError; it never returns an error value so each failure kind
// stays retrievable after the fact.
func (s *instagramService) Login(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn {
		return true
	}

	// Try restoring a cached session first.
	if _, err := os.Stat(s.cfg.InstagramSessionFile); err == nil {
		s.state = stateSessionRestoring
		if err := s.loadSession(); err == nil {
			if err := s.probe(ctx); err == nil {
				s.state = stateLoggedIn
				s.loggedIn = true
				return true
			}
			slog.Info("instagram session expired, falling back to fresh login")
		}
		// Stale or unreadable artifact: start clean.
		os.Remove(s.cfg.InstagramSessionFile)
		s.state = stateSessionExpired
	}

	return s.freshLogin(ctx)
}

// freshLogin performs one full username/password login. Callers must hold mu.
func (s *instagramService) freshLogin(ctx context.Context) bool {
	s.state = stateFreshLoginAttempt

	if s.loginAttempts >= maxLoginAttempts {
		s.recordFailure(&LoginError{Kind: LoginFailureTooManyAttempts, Detail: "relogin attempt limit reached for this process"})
		return false
	}
	s.loginAttempts++

	// Deliberate pause before contacting the platform; immediate logins
	// after startup trip automation detection.
	select {
	case <-time.After(s.loginDelay):
	case <-ctx.Done():
		s.recordFailure(&LoginError{Kind: LoginFailureUnknown, Detail: ctx.Err().Error()})
		return false
	}

	form := url.Values{}
	form.Set("username", s.cfg.InstagramUsername)
	form.Set("password", s.cfg.InstagramPassword)
	form.Set("device_id", igDeviceID)

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/v1/accounts/login/", strings.NewReader(form.Encode()))
	if err != nil {
		s.recordFailure(&LoginError{Kind: LoginFailureUnknown, Detail: err.Error()})
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setDeviceHeaders(req)

	resp, err := s.http.Do(req)
	if err != nil {
		s.recordFailure(&LoginError{Kind: LoginFailureUnknown, Detail: err.Error()})
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.recordFailure(&LoginError{Kind: LoginFailureUnknown, Detail: err.Error()})
		return false
	}

	var result struct {
		Status            string `json:"status"`
		Message           string `json:"message"`
		ErrorType         string `json:"error_type"`
		TwoFactorRequired bool   `json:"two_factor_required"`
		Challenge         struct {
			APIPath string `json:"api_path"`
		} `json:"challenge"`
		StepName  string `json:"step_name"`
		SessionID string `json:"session_id"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		s.recordFailure(&LoginError{Kind: LoginFailureUnknown, Detail: fmt.Sprintf("unparseable login response: %v", err)})
		return false
	}

	if resp.StatusCode != http.StatusOK || result.Status != "ok" {
		loginErr := classifyLoginFailure(result.Message, result.ErrorType, result.Challenge.APIPath, result.StepName, result.TwoFactorRequired)
		if loginErr.Kind == LoginFailureBadCredentials {
			// Next attempt must not reuse a session minted for the
			// wrong credentials.
			os.Remove(s.cfg.InstagramSessionFile)
		}
		s.recordFailure(loginErr)
		return false
	}

	s.session = sessionCache{
		Username:  s.cfg.InstagramUsername,
		SessionID: result.SessionID,
		CSRFToken: result.CSRFToken,
		DeviceID:  igDeviceID,
	}
	if err := s.dumpSession(); err != nil {
		slog.Info("failed to persist instagram session: " + err.Error())
	}

	s.state = stateLoggedIn
	s.loggedIn = true
	s.lastError = ""
	return true
}

func classifyLoginFailure(message, errorType, challengePath, stepName string, twoFactor bool) *LoginError {
	detail := message
	if detail == "" {
		detail = errorType
	}

	switch {
	case twoFactor:
		return &LoginError{Kind: LoginFailureTwoFactor, Detail: "two-factor authentication required"}
	case errorType == "bad_password" || errorType == "invalid_user":
		return &LoginError{Kind: LoginFailureBadCredentials, Detail: detail}
	case strings.Contains(challengePath, "recaptcha") || errorType == "captcha_challenge":
		return &LoginError{Kind: LoginFailureCheckpoint, Detail: "CAPTCHA challenge required"}
	case stepName == "select_contact_point_recovery":
		return &LoginError{Kind: LoginFailureRecoveryForm, Detail: "account recovery form required"}
	case message == "challenge_required" || errorType == "checkpoint_challenge_required":
		return &LoginError{Kind: LoginFailureChallenge, Detail: detail}
	case errorType == "rate_limit_error" || strings.Contains(strings.ToLower(message), "wait a few minutes"):
		return &LoginError{Kind: LoginFailureRateLimited, Detail: detail}
	default:
		return &LoginError{Kind: LoginFailureUnknown, Detail: detail}
	}
}

func (s *instagramService) recordFailure(err *LoginError) {
	s.state = stateLoginFailed
	s.lastError = err.Error()
	slog.Info(s.lastError)
}

// probe performs a lightweight authenticated request to verify the restored
// session still works. Callers must hold mu.
func (s *instagramService) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/api/v1/feed/timeline/", nil)
	if err != nil {
		return err
	}
	s.setDeviceHeaders(req)
	setSessionHeaders(req, s.session)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("session probe rejected: %s (status code: %d)", body, resp.StatusCode)
	}
	return nil
}

// ProbeSession re-validates the current session outside a posting flow (used
// by the keepalive job). A failed probe drops the in-memory logged-in flag so
// the next post performs a full login.
func (s *instagramService) ProbeSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loggedIn {
		return errors.New("not logged in")
	}
	if err := s.probe(ctx); err != nil {
		s.loggedIn = false
		s.state = stateSessionExpired
		return err
	}
	return nil
}

// PostPhoto uploads an image with the caption plus the configured hashtag
// block and returns the platform-assigned post id. The upload endpoint wants
// a filesystem path, so the bytes go through a temporary file that is removed
// on every exit path.
func (s *instagramService) PostPhoto(ctx context.Context, image []byte, caption string) (string, error) {
	if !s.Login(ctx) {
		return "", &PublishError{Err: errors.New(s.LastError())}
	}

	fullCaption := caption
	if len(s.cfg.DefaultHashtags) > 0 {
		fullCaption = caption + "\n\n" + strings.Join(s.cfg.DefaultHashtags, " ")
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", &PublishError{Err: err}
	}
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("mealflow_upload_%s.jpg", id))
	if err := os.WriteFile(tempPath, image, 0o600); err != nil {
		return "", &PublishError{Err: err}
	}
	defer os.Remove(tempPath)

	postID, err := s.uploadPhoto(ctx, tempPath, fullCaption)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return "", &PublishError{Err: err}
	}

	return postID, nil
}

// uploadPhoto is the two-step private-API photo upload: raw bytes first, then
// a configure call that attaches the caption and creates the media.
func (s *instagramService) uploadPhoto(ctx context.Context, path, caption string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading upload file: %w", err)
	}

	// Copy the session out under mu; the keepalive job may rewrite it while
	// this upload is in flight.
	sess := s.sessionSnapshot()

	uploadID := fmt.Sprintf("%d", time.Now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/rupload_igphoto/"+uploadID, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Entity-Name", filepath.Base(path))
	req.Header.Set("X-Entity-Length", fmt.Sprintf("%d", len(data)))
	s.setDeviceHeaders(req)
	setSessionHeaders(req, sess)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("photo upload rejected: %s (status code: %d)", body, resp.StatusCode)
	}

	form := url.Values{}
	form.Set("upload_id", uploadID)
	form.Set("caption", caption)
	form.Set("device_id", sess.DeviceID)

	configureReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/v1/media/configure/", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating configure request: %w", err)
	}
	configureReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setDeviceHeaders(configureReq)
	setSessionHeaders(configureReq, sess)

	configureResp, err := s.http.Do(configureReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer configureResp.Body.Close()

	body, err := io.ReadAll(configureResp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading configure response: %w", err)
	}
	if configureResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media configure rejected: %s (status code: %d)", body, configureResp.StatusCode)
	}

	var result struct {
		Media struct {
			PK json.Number `json:"pk"`
			ID string      `json:"id"`
		} `json:"media"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing configure response: %w", err)
	}

	postID := result.Media.PK.String()
	if postID == "" || postID == "0" {
		postID = result.Media.ID
	}
	if postID == "" {
		return "", errors.New("no media id returned from Instagram")
	}
	return postID, nil
}

func (s *instagramService) setDeviceHeaders(req *http.Request) {
	req.Header.Set("User-Agent", igUserAgent)
	req.Header.Set("X-IG-App-Version", igAppVersion)
	req.Header.Set("X-IG-Device-Resolution", igResolution)
	req.Header.Set("X-IG-Device-ID", igDeviceID)
}

func setSessionHeaders(req *http.Request, sess sessionCache) {
	if sess.SessionID != "" {
		req.Header.Set("Authorization", "Bearer IGT:2:"+sess.SessionID)
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: sess.SessionID})
	}
	if sess.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", sess.CSRFToken)
	}
}

// sessionSnapshot copies the session fields for use outside mu. probe passes
// s.session directly because its callers already hold the lock.
func (s *instagramService) sessionSnapshot() sessionCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *instagramService) loadSession() error {
	data, err := os.ReadFile(s.cfg.InstagramSessionFile)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.session)
}

func (s *instagramService) dumpSession() error {
	data, err := json.Marshal(s.session)
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.InstagramSessionFile, data, 0o600)
}
