package uploadstage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// ErrCDNUnreachable wraps any failure that occurred before the CDN
// produced an HTTP response (connection refused, timeout, DNS failure) —
// distinct from an ordinary non-2xx status.
var ErrCDNUnreachable = errors.New("uploadstage: cdn unreachable")

// CDNClient uploads a clip and verifies its placement. It is the seam
// uploadstage tests substitute with an in-memory fake.
type CDNClient interface {
	// Upload POSTs path as a multipart "files" field and returns the
	// server's last-token identifier from the response body.
	Upload(ctx context.Context, path string) (id string, err error)
	// Verify GETs /<id> and returns the response's status code.
	Verify(ctx context.Context, id string) (statusCode int, err error)
}

// HTTPCDNClient is the production CDNClient: a plain multipart POST plus
// a GET verify call.
type HTTPCDNClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPCDNClient builds a client relying on the transport's own defaults
// rather than an explicit application-level timeout.
func NewHTTPCDNClient(baseURL string) *HTTPCDNClient {
	return &HTTPCDNClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (c *HTTPCDNClient) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", util.WrapError("open clip for upload", err)
	}
	defer util.SafeClose(f, path)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", path)
	if err != nil {
		return "", util.WrapError("build multipart body", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", util.WrapError("copy clip into multipart body", err)
	}
	if err := writer.Close(); err != nil {
		return "", util.WrapError("close multipart writer", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", &body)
	if err != nil {
		return "", util.WrapError("build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCDNUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCDNUnreachable, err)
	}
	fields := strings.Fields(string(respBody))
	if len(fields) == 0 {
		return "", fmt.Errorf("uploadstage: empty identifier in upload response")
	}
	return fields[len(fields)-1], nil
}

func (c *HTTPCDNClient) Verify(ctx context.Context, id string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+id, nil)
	if err != nil {
		return 0, util.WrapError("build verify request", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCDNUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
