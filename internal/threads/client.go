// Package threads is a small client for the Threads Graph API covering
// container creation, publishing, insights and token refresh.
package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://graph.threads.net/v1.0"

	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 10
)

// Credentials identify the Threads profile a call acts on.
type Credentials struct {
	UserID string
	Token  *oauth2.Token
}

type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
	maxPolls     int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every single API call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithContainerPolling configures how video and carousel containers are polled
// before publishing. maxPolls of zero disables polling.
func WithContainerPolling(interval time.Duration, maxPolls int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPolls = maxPolls
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Publish creates the media container(s) for content and publishes them,
// returning the id of the live Threads post. A container that was created but
// failed to publish is left behind.
func (c *Client) Publish(ctx context.Context, creds Credentials, content Content) (string, error) {
	var (
		creationID string
		err        error
	)

	switch v := content.(type) {
	case TextPost:
		params := url.Values{}
		params.Set("text", v.Text)
		if v.LinkAttachment != "" {
			params.Set("link_attachment", v.LinkAttachment)
		}
		creationID, err = c.createContainer(ctx, creds, v.mediaType(), params)
	case ImagePost:
		params := url.Values{}
		params.Set("image_url", v.ImageURL)
		setText(params, v.Text)
		creationID, err = c.createContainer(ctx, creds, v.mediaType(), params)
	case VideoPost:
		params := url.Values{}
		params.Set("video_url", v.VideoURL)
		setText(params, v.Text)
		creationID, err = c.createContainer(ctx, creds, v.mediaType(), params)
		if err == nil {
			err = c.waitForContainer(ctx, creds, creationID)
		}
	case CarouselPost:
		creationID, err = c.createCarousel(ctx, creds, v)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedContent, content)
	}
	if err != nil {
		return "", err
	}

	return c.publishContainer(ctx, creds, creationID)
}

func (c *Client) createCarousel(ctx context.Context, creds Credentials, post CarouselPost) (string, error) {
	children := make([]string, 0, len(post.Items))

	for _, item := range post.Items {
		params := url.Values{}
		params.Set("is_carousel_item", "true")

		mediaType := ImagePost{}.mediaType()
		if item.Kind == "video" {
			mediaType = VideoPost{}.mediaType()
			params.Set("video_url", item.URL)
		} else {
			params.Set("image_url", item.URL)
		}

		childID, err := c.createContainer(ctx, creds, mediaType, params)
		if err != nil {
			return "", err
		}
		if item.Kind == "video" {
			if err := c.waitForContainer(ctx, creds, childID); err != nil {
				return "", err
			}
		}
		children = append(children, childID)
	}

	params := url.Values{}
	params.Set("children", strings.Join(children, ","))
	setText(params, post.Text)

	creationID, err := c.createContainer(ctx, creds, post.mediaType(), params)
	if err != nil {
		return "", err
	}
	if err := c.waitForContainer(ctx, creds, creationID); err != nil {
		return "", err
	}
	return creationID, nil
}

func (c *Client) createContainer(ctx context.Context, creds Credentials, mediaType string, params url.Values) (string, error) {
	params.Set("media_type", mediaType)

	var result transfer.ThreadsContainerResponse
	if err := c.do(ctx, creds.Token, "create_container", http.MethodPost, "/"+profileID(creds)+"/threads", params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PublishError{Op: "create_container", StatusCode: http.StatusOK, Message: "no container id returned from Threads"}
	}
	return result.ID, nil
}

func (c *Client) publishContainer(ctx context.Context, creds Credentials, creationID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", creationID)

	var result transfer.ThreadsContainerResponse
	if err := c.do(ctx, creds.Token, "publish", http.MethodPost, "/"+profileID(creds)+"/threads_publish", params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PublishError{Op: "publish", StatusCode: http.StatusOK, Message: "no post id returned from Threads"}
	}
	return result.ID, nil
}

func (c *Client) waitForContainer(ctx context.Context, creds Credentials, containerID string) error {
	if c.maxPolls <= 0 {
		return nil
	}

	params := url.Values{}
	params.Set("fields", "status,error_message")

	for i := 0; i < c.maxPolls; i++ {
		var status transfer.ThreadsContainerStatus
		if err := c.do(ctx, creds.Token, "container_status", http.MethodGet, "/"+containerID, params, &status); err != nil {
			return err
		}

		switch status.Status {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			msg := status.ErrorMessage
			if msg == "" {
				msg = "container " + strings.ToLower(status.Status)
			}
			return &PublishError{Op: "container_status", StatusCode: http.StatusOK, Message: msg}
		}

		select {
		case <-ctx.Done():
			return &PublishError{Op: "container_status", Network: true, Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}
	}

	return &PublishError{
		Op:         "container_status",
		StatusCode: http.StatusOK,
		Message:    fmt.Sprintf("container %s not ready after %d checks", containerID, c.maxPolls),
		Transient:  true,
	}
}

// do sends params as a form body (POST) or query string (GET) and decodes a
// 200 response into out. A nil token sends the request unauthenticated.
func (c *Client) do(ctx context.Context, token *oauth2.Token, op, method, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client(ctx, token).Do(req)
	if err != nil {
		return &PublishError{Op: op, Network: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &PublishError{Op: op, Network: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(op, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &PublishError{Op: op, StatusCode: resp.StatusCode, Message: "error parsing response", Transient: true, Err: err}
	}
	return nil
}

func (c *Client) client(ctx context.Context, token *oauth2.Token) *http.Client {
	if token == nil {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

func profileID(creds Credentials) string {
	if creds.UserID == "" {
		return "me"
	}
	return creds.UserID
}

func setText(params url.Values, text string) {
	if text != "" {
		params.Set("text", text)
	}
}
