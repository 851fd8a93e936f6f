package board

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"chanscraper/pkg/config"
	"chanscraper/pkg/errors"
	"chanscraper/pkg/logger"
	"chanscraper/pkg/ratelimit"
)

// Client reads a single board through the public JSON API
type Client struct {
	api       *resty.Client
	media     *resty.Client
	board     string
	baseURL   string
	imageHost string
	logger    logger.Logger
}

// NewClient creates a board client. The limiter paces every request made
// by both the API and the media transport; nil disables pacing.
func NewClient(cfg *config.Config, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	c := &Client{
		board:     cfg.Board.Name,
		baseURL:   cfg.Board.BaseURL,
		imageHost: cfg.Board.ImageHost,
		logger:    log.WithField("component", "board"),
	}
	c.api = c.newTransport(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, limiter)
	c.media = c.newTransport(cfg.HTTP.UserAgent, cfg.Download.Timeout, limiter)
	return c
}

func (c *Client) newTransport(userAgent string, timeout time.Duration, limiter ratelimit.Limiter) *resty.Client {
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(timeout)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.LogRequest(c.logger, res.Request.Method, res.Request.URL, res.StatusCode(), res.Time().Milliseconds())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})
	})
	return client
}

// Board returns the board name this client reads
func (c *Client) Board() string {
	return c.board
}

// MediaURL returns the direct URL of an attachment on this board
func (c *Client) MediaURL(a Attachment) string {
	return MediaURL(c.imageHost, c.board, a)
}

// FetchCatalog returns the active threads in catalog order
func (c *Client) FetchCatalog(ctx context.Context) ([]Thread, error) {
	url := CatalogURL(c.baseURL, c.board)

	var pages []catalogPage
	if err := c.getJSON(ctx, url, &pages); err != nil {
		return nil, err
	}

	threads := toThreads(pages)
	c.logger.DebugWithFields("fetched catalog", map[string]interface{}{
		"pages":   len(pages),
		"threads": len(threads),
	})
	return threads, nil
}

// FetchThread returns every post currently visible in a thread. A pruned
// thread is reported as a not_found error.
func (c *Client) FetchThread(ctx context.Context, threadID string) ([]Post, error) {
	url := ThreadURL(c.baseURL, c.board, threadID)

	var resp threadResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return toPosts(resp), nil
}

// OpenMedia starts a streamed download of an attachment. The caller must
// close the returned body. The size is -1 when the server does not send it.
func (c *Client) OpenMedia(ctx context.Context, a Attachment) (io.ReadCloser, int64, error) {
	url := c.MediaURL(a)

	resp, err := c.media.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, errors.Transport(url, err)
	}

	// Unparsed responses skip the OnAfterResponse hook
	logger.LogRequest(c.logger, resty.MethodGet, url, resp.StatusCode(), resp.Time().Milliseconds())

	body := resp.RawBody()
	if e := errors.FromStatus(resp.StatusCode(), url); e != nil {
		body.Close()
		return nil, 0, e
	}
	return body, resp.RawResponse.ContentLength, nil
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.api.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Transport(url, err)
	}

	if e := errors.FromStatus(resp.StatusCode(), url); e != nil {
		return e
	}

	if err := json.Unmarshal(resp.Body(), target); err != nil {
		// Create a preview of the body for debugging
		bodyPreview := string(resp.Body())
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode(),
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errors.Malformed(url, resp.StatusCode(), fmt.Errorf("decode %T: %w", target, err))
	}
	return nil
}
