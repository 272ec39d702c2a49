// Package client talks to the huddle HTTP API on behalf of one signed-in
// user. *Client implements store.Persistence and composer.Uploader.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

const defaultTimeout = 20 * time.Second

// APIError is a non-2xx response. It unwraps to the apperr kind matching
// the status, so errors.Is(err, apperr.ErrPermission) works on a 403.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("huddle api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("huddle api error (%d)", e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return apperr.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.ErrPermission
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConsistency
	}
	return apperr.ErrPersistence
}

type apiErrorPayload struct {
	Error string `json:"error"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	filesURL   string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

// WithFilesURL points uploads at a separate file service. Defaults to the
// API base URL.
func WithFilesURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.filesURL = strings.TrimRight(raw, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a client for baseURL ("http://localhost:8081") that
// authenticates with the bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    normalized,
		filesURL:   normalized,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL trims trailing slashes and insists on a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("api url must start with http:// or https://")
	}
	return strings.TrimRight(value, "/"), nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/v1/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetSpace(ctx context.Context, spaceID uuid.UUID) (*models.Space, error) {
	var sp models.Space
	if err := c.doJSON(ctx, http.MethodGet, "/v1/spaces/"+spaceID.String(), nil, nil, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (c *Client) ListMembers(ctx context.Context, spaceID uuid.UUID) ([]models.Member, error) {
	members := make([]models.Member, 0)
	if err := c.doJSON(ctx, http.MethodGet, "/v1/spaces/"+spaceID.String()+"/members", nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ListChannels(ctx context.Context, spaceID uuid.UUID) ([]models.Channel, error) {
	channels := make([]models.Channel, 0)
	if err := c.doJSON(ctx, http.MethodGet, "/v1/spaces/"+spaceID.String()+"/channels", nil, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

type channelBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) CreateChannel(ctx context.Context, spaceID uuid.UUID, name, description string) (*models.Channel, error) {
	var ch models.Channel
	body := channelBody{Name: name, Description: description}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/spaces/"+spaceID.String()+"/channels", nil, body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) UpdateChannel(ctx context.Context, channelID uuid.UUID, name, description string) (*models.Channel, error) {
	var ch models.Channel
	body := channelBody{Name: name, Description: description}
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/channels/"+channelID.String(), nil, body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/channels/"+channelID.String(), nil, nil, nil)
}

// ListMessages returns the newest page of the channel, oldest first.
func (c *Client) ListMessages(ctx context.Context, channelID uuid.UUID) ([]models.Message, error) {
	return c.ListMessagesBefore(ctx, channelID, 0, 0)
}

// ListMessagesBefore pages backwards from the message before (0 means the
// latest). limit 0 leaves the page size to the server.
func (c *Client) ListMessagesBefore(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	query := url.Values{}
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	msgs := make([]models.Message, 0)
	if err := c.doJSON(ctx, http.MethodGet, "/v1/channels/"+channelID.String()+"/messages", query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error) {
	var msg models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/v1/channels/"+channelID.String()+"/messages", nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) UpdateMessage(ctx context.Context, messageID int64, text string) (*models.Message, error) {
	var msg models.Message
	body := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPatch, messagePath(messageID), nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	var msg models.Message
	if err := c.doJSON(ctx, http.MethodDelete, messagePath(messageID), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) ForwardMessage(ctx context.Context, messageID int64, targetChannelID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	body := map[string]uuid.UUID{"channel_id": targetChannelID}
	if err := c.doJSON(ctx, http.MethodPost, messagePath(messageID)+"/forward", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func messagePath(id int64) string {
	return "/v1/messages/" + strconv.FormatInt(id, 10)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, respBody)
}

func (c *Client) do(req *http.Request, respBody any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	return json.Unmarshal(respData, respBody)
}
