// Package portal is the typed HTTP client for the remote portal backend that
// hosts the recommendation, chat, and interview intelligence.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keranlabs/keran/domain/entities"
	"github.com/keranlabs/keran/domain/repositories"
)

const defaultTimeout = 30 * time.Second

// NetworkError reports a request that never produced a decodable response:
// transport failures and non-2xx statuses
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("portal %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("portal %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response that arrived but did not match the expected
// contract
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("portal %s: decoding response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Client talks to the portal backend over JSON HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	observer   func(op, status string, elapsed time.Duration)
	logger     *zap.Logger
}

var (
	_ repositories.InterviewBackend = (*Client)(nil)
	_ repositories.ChatBackend      = (*Client)(nil)
	_ repositories.AuthBackend      = (*Client)(nil)
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthToken attaches a bearer token to every request
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRequestObserver registers a callback receiving the operation name,
// "ok" or "error", and the elapsed time of every portal request
func WithRequestObserver(fn func(op, status string, elapsed time.Duration)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// NewClient creates a portal client for the given base URL
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type interviewStartRequest struct {
	Role       string `json:"role"`
	Mode       string `json:"mode"`
	Difficulty int    `json:"difficulty,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// StartInterview requests the opening question for a session
func (c *Client) StartInterview(ctx context.Context, config entities.InterviewConfig) (repositories.Question, error) {
	var question repositories.Question
	err := c.post(ctx, "interview/start", interviewStartRequest{
		Role:       config.Role,
		Mode:       string(config.Mode),
		Difficulty: config.Difficulty,
	}, &question)
	if err != nil {
		return repositories.Question{}, err
	}
	if question.Text == "" {
		return repositories.Question{}, &DecodeError{Op: "interview/start", Err: fmt.Errorf("response carries no question")}
	}
	return question, nil
}

// SubmitAnswer sends one answered question for evaluation
func (c *Client) SubmitAnswer(ctx context.Context, submission repositories.AnswerSubmission) (repositories.SubmissionResult, error) {
	var result repositories.SubmissionResult
	if err := c.post(ctx, "interview/submit", submission, &result); err != nil {
		return repositories.SubmissionResult{}, err
	}
	if result.NextQuestion.Text == "" {
		return repositories.SubmissionResult{}, &DecodeError{Op: "interview/submit", Err: fmt.Errorf("response carries no next question")}
	}
	return result, nil
}

// SendMessage posts one chat message with its page context
func (c *Client) SendMessage(ctx context.Context, message, pageContext string) (string, error) {
	var reply chatResponse
	if err := c.post(ctx, "chat", chatRequest{Message: message, Context: pageContext}, &reply); err != nil {
		return "", err
	}
	return reply.Reply, nil
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	User        struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		ImageURL string `json:"image_url"`
	} `json:"user"`
}

// Login authenticates portal credentials. The portal's login endpoint speaks
// form encoding, not JSON, so this does not go through post.
func (c *Client) Login(ctx context.Context, email, password string) (identity *repositories.Identity, err error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("portal login: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	defer func() { c.observe("login", err, started) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, repositories.ErrBadCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{Op: "login", Status: resp.StatusCode}
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &DecodeError{Op: "login", Err: err}
	}
	if decoded.AccessToken == "" {
		return nil, &DecodeError{Op: "login", Err: fmt.Errorf("response carries no access token")}
	}

	return &repositories.Identity{
		Token:    decoded.AccessToken,
		Role:     decoded.Role,
		Name:     decoded.User.Name,
		Email:    decoded.User.Email,
		ImageURL: decoded.User.ImageURL,
	}, nil
}

// observe reports one finished request to the configured observer
func (c *Client) observe(op string, err error, started time.Time) {
	if c.observer == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.observer(op, status, time.Since(started))
}

// post marshals payload, performs the request, and decodes the response into
// out, classifying failures as NetworkError or DecodeError
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) (err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("portal %s: marshaling request: %w", path, err)
	}

	url := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("portal %s: building request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	defer func() { c.observe(path, err, started) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("portal request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &NetworkError{Op: path, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: path, Err: err}
	}
	return nil
}
