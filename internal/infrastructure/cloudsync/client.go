// Package cloudsync is the HTTP client of the remote sync service, plus the
// websocket channel the service uses to notify changes.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/pkg/circuitbreaker"
	"github.com/thanhpk/randstr"
	"go.uber.org/ratelimit"
)

const (
	DefaultRequestsPerSecond = 10
	DefaultTimeout           = 30 * time.Second

	tokenTTL    = time.Minute
	nonceLength = 16

	pathCheck    = "/v1/sync/check"
	pathUpload   = "/v1/sync/upload"
	pathDownload = "/v1/sync/download"
	pathFlush    = "/v1/sync/flush"
	pathLock     = "/v1/sync/lock"
)

// Config ...
type Config struct {
	Endpoint string
	// UserID is the subject of the bearer tokens.
	UserID            string
	AuthSecret        string
	RequestsPerSecond int
	Timeout           time.Duration
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("missing sync service endpoint")
	}
	if _, err := url.Parse(c.Endpoint); err != nil {
		return fmt.Errorf("invalid sync service endpoint: %w", err)
	}
	if c.UserID == "" {
		return fmt.Errorf("missing sync user id")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("missing sync auth secret")
	}
	return nil
}

// HTTPError is returned for any non 2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sync service responded %d: %s", e.Status, e.Body)
}

// Client implements ports.CloudSyncClient. Requests are paced client side
// and go through a circuit breaker.
type Client struct {
	endpoint string
	userID   string
	secret   []byte

	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		userID:   cfg.UserID,
		secret:   []byte(cfg.AuthSecret),
		http:     &http.Client{Timeout: timeout},
		cb:       circuitbreaker.NewCircuitBreaker("cloudsync"),
		limiter:  ratelimit.New(rps),
	}, nil
}

type checkRequest struct {
	LocalData     []ports.SyncCheckItem `json:"localData"`
	IsFullDBCheck bool                  `json:"isFullDBCheck"`
}

func (c *Client) Check(
	ctx context.Context, items []ports.SyncCheckItem, isFullDBCheck bool,
) (*ports.SyncCheckResult, error) {
	result := &ports.SyncCheckResult{}
	if err := c.do(ctx, http.MethodPost, pathCheck, checkRequest{
		LocalData:     items,
		IsFullDBCheck: isFullDBCheck,
	}, result); err != nil {
		return nil, err
	}
	return result, nil
}

type uploadRequest struct {
	LocalData []ports.SyncServerItem `json:"localData"`
	PwdHash   string                 `json:"pwdHash"`
	Lock      *ports.SyncServerItem  `json:"lock,omitempty"`
}

func (c *Client) Upload(
	ctx context.Context, items []ports.SyncServerItem, pwdHash string,
	lock *ports.SyncServerItem,
) (*ports.SyncUploadResult, error) {
	result := &ports.SyncUploadResult{}
	if err := c.do(ctx, http.MethodPost, pathUpload, uploadRequest{
		LocalData: items,
		PwdHash:   pwdHash,
		Lock:      lock,
	}, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Download(
	ctx context.Context, start, limit int, includeDeleted bool, pwdHash string,
) (*ports.SyncDownloadResult, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("includeDeleted", strconv.FormatBool(includeDeleted))
	query.Set("pwdHash", pwdHash)

	result := &ports.SyncDownloadResult{}
	if err := c.do(
		ctx, http.MethodGet, pathDownload+"?"+query.Encode(), nil, result,
	); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Flush(
	ctx context.Context, items []ports.SyncServerItem, pwdHash string,
	lock *ports.SyncServerItem,
) error {
	return c.do(ctx, http.MethodPost, pathFlush, uploadRequest{
		LocalData: items,
		PwdHash:   pwdHash,
		Lock:      lock,
	}, nil)
}

// GetLock returns nil if the server holds no lock.
func (c *Client) GetLock(ctx context.Context) (*ports.SyncLock, error) {
	lock := &ports.SyncLock{}
	if err := c.do(ctx, http.MethodGet, pathLock, nil, lock); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return lock, nil
}

// PostLock fills a random nonce if missing.
func (c *Client) PostLock(ctx context.Context, lock ports.SyncLock) error {
	if lock.Nonce == "" {
		lock.Nonce = randstr.Hex(nonceLength)
	}
	return c.do(ctx, http.MethodPost, pathLock, lock, nil)
}

func (c *Client) do(
	ctx context.Context, method, path string, body, result interface{},
) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = buf
	}

	c.limiter.Take()
	respBody, err := c.cb.Execute(func() (interface{}, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	buf := respBody.([]byte)
	if len(buf) <= 0 {
		return nil
	}
	if err := json.Unmarshal(buf, result); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return nil
}

func (c *Client) send(
	ctx context.Context, method, path string, payload []byte,
) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(buf)}
	}
	return buf, nil
}

func (c *Client) token() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   c.userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenTTL).Unix(),
		Id:        randstr.Hex(nonceLength),
	})
	return token.SignedString(c.secret)
}
