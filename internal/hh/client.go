// Package hh implements the hh.ru vacancy search client on top of gocolly.
package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

const (
	defaultTimeout = 10 * time.Second
	defaultPerPage = 100
)

// Config controls the API client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	PerPage   int
}

// Client implements vacancy.PageFetcher against GET {base}/vacancies.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type searchResponse struct {
	Items []json.RawMessage `json:"items"`
	Pages int               `json:"pages"`
}

// New builds a Client. Every request clones one base collector so the
// connection pool is shared across region workers. Clones share the base
// HTTP backend, so anything that touches it is configured here, once.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{cfg: cfg, baseCollector: c, logger: logger}
}

// SearchURL renders the request URL for one region page.
func (c *Client) SearchURL(regionID, page int) string {
	q := url.Values{}
	q.Set("area", strconv.Itoa(regionID))
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	q.Set("page", strconv.Itoa(page))
	return c.cfg.BaseURL + "/vacancies?" + q.Encode()
}

// FetchPage requests one page of vacancies for a region. Any transport
// failure, timeout, non-success status or undecodable body is returned as a
// *vacancy.RequestError. It is safe for concurrent use.
func (c *Client) FetchPage(ctx context.Context, regionID, page int) (vacancy.Page, error) {
	res, err := c.visit(ctx, c.SearchURL(regionID, page))
	if err == nil {
		err = res.err
	}
	if err != nil {
		reqErr := &vacancy.RequestError{RegionID: regionID, Page: page, StatusCode: res.statusCode, Err: err}
		switch {
		case res.statusCode != 0:
			metrics.ObserveRequestFailure(metrics.FailureStatus)
		case isTimeout(err):
			reqErr.Timeout = true
			metrics.ObserveRequestFailure(metrics.FailureTimeout)
		default:
			metrics.ObserveRequestFailure(metrics.FailureTransport)
		}
		metrics.ObservePage(regionID, false)
		return vacancy.Page{}, reqErr
	}

	result, err := decodePage(res.body)
	if err != nil {
		metrics.ObserveRequestFailure(metrics.FailureDecode)
		metrics.ObservePage(regionID, false)
		return vacancy.Page{}, &vacancy.RequestError{RegionID: regionID, Page: page, StatusCode: res.statusCode, Err: err}
	}
	metrics.ObservePage(regionID, true)
	if result.Dropped > 0 {
		c.logger.Warn("dropped malformed vacancy items",
			zap.Int("region_id", regionID),
			zap.Int("page", page),
			zap.Int("dropped", result.Dropped),
		)
	}
	return result, nil
}

// visitResult is owned by the visiting goroutine until it is sent on done.
type visitResult struct {
	body       []byte
	statusCode int
	err        error
}

// visit runs one request on a fresh clone. A canceled ctx returns at once;
// the abandoned request finishes in the background and its result is dropped.
func (c *Client) visit(ctx context.Context, target string) (visitResult, error) {
	done := make(chan visitResult, 1)
	go func() {
		var res visitResult
		collector := c.baseCollector.Clone()
		collector.OnRequest(func(r *colly.Request) {
			r.Headers.Set("Accept", "application/json")
			if c.cfg.UserAgent != "" {
				r.Headers.Set("HH-User-Agent", c.cfg.UserAgent)
			}
		})
		collector.OnResponse(func(r *colly.Response) {
			res.statusCode = r.StatusCode
			res.body = append([]byte(nil), r.Body...)
		})
		collector.OnError(func(r *colly.Response, err error) {
			if r != nil {
				res.statusCode = r.StatusCode
			}
			res.err = err
		})
		if err := collector.Visit(target); err != nil && res.err == nil {
			res.err = fmt.Errorf("visit %s: %w", target, err)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return visitResult{}, fmt.Errorf("request canceled: %w", ctx.Err())
	case res := <-done:
		return res, nil
	}
}

func decodePage(body []byte) (vacancy.Page, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return vacancy.Page{}, fmt.Errorf("decode search response: %w", err)
	}
	page := vacancy.Page{Pages: resp.Pages, Items: make([]vacancy.RawDocument, 0, len(resp.Items))}
	for _, item := range resp.Items {
		id, archived, err := vacancy.ParseHeader(item)
		if err != nil || id == "" {
			page.Dropped++
			continue
		}
		page.Items = append(page.Items, vacancy.RawDocument{
			ID:       id,
			Archived: archived,
			Body:     item,
		})
	}
	return page, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
