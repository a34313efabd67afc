package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
)

// Page is a fetched response.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte
}

// FetchPage GETs rawURL. Non-2xx statuses are returned as errors.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode())
	}

	final := rawURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	return &Page{
		URL:         final,
		Status:      resp.StatusCode(),
		Header:      resp.Header(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Document fetches and parses rawURL. The final URL becomes the document
// URL so relative references resolve against it.
func (c *Client) Document(ctx context.Context, rawURL string) (*dom.Document, error) {
	page, err := c.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return dom.ParseReader(bytes.NewReader(page.Body), page.URL)
}

// ProbeHeaders GETs pageURL and returns the status and headers of the final
// response, whatever the status.
func (c *Client) ProbeHeaders(ctx context.Context, pageURL string) (pentest.ProbeResult, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return pentest.ProbeResult{}, err
	}
	return pentest.ProbeResult{Status: resp.StatusCode(), Header: resp.Header()}, nil
}
