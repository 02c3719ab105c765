// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// Form accumulates multipart/form-data fields for the backend endpoints,
// which consume Flask-style form posts.
type Form struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func NewForm() *Form {
	f := &Form{}
	f.writer = multipart.NewWriter(&f.buf)
	return f
}

// Field adds a plain text field. Empty values are skipped so optional form
// fields are simply absent, matching what the backend expects.
func (f *Form) Field(name, value string) *Form {
	if f.err != nil || value == "" {
		return f
	}
	f.err = f.writer.WriteField(name, value)
	return f
}

// File adds a file part read from r.
func (f *Form) File(fieldName, fileName string, r io.Reader) *Form {
	if f.err != nil {
		return f
	}
	part, err := f.writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		f.err = err
		return f
	}
	_, f.err = io.Copy(part, r)
	return f
}

// Request finalizes the form into a POST request with the right content type.
func (f *Form) Request(ctx context.Context, url string) (*http.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := f.writer.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &f.buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", f.writer.FormDataContentType())
	return req, nil
}
