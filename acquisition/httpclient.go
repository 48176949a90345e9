// Package acquisition implements Cortex's HTTP-only discovery pipeline:
// robots.txt, sitemap.xml, homepage/login-path scanning, feed discovery,
// parallel HEAD scanning, structured-data extraction, and the protocol
// discovery layer (auth, WebSocket, drag-and-drop, canvas).
package acquisition

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogs/chardet"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/cortex/cortexerr"
)

// maxBodyBytes bounds how much of any single response body is read.
const maxBodyBytes = 10 << 20

// FetchResult is the outcome of one HTTP request (§6 HttpClient contract).
type FetchResult struct {
	URL      string
	FinalURL string
	Status   int
	Headers  http.Header
	Body     []byte
}

// HttpClient is Cortex's acquisition-stage transport: a Chrome-shaped utls
// ClientHello so robots/sitemap/homepage/feed/HEAD-scan traffic isn't
// trivially fingerprinted before any page is ever rendered.
type HttpClient struct {
	client *http.Client
}

// chromeH1Spec is computed once and reused for every connection, exactly as
// the teacher's HTTPEngine does.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHttpClient builds an HttpClient with a Chrome-like TLS fingerprint. The
// transport keeps Go's default transparent gzip decompression, so bodies
// arrive already decoded.
func NewHttpClient() *HttpClient {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("acquisition: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &HttpClient{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("acquisition: too many redirects")
				}
				return nil
			},
		},
	}
}

func (c *HttpClient) do(ctx context.Context, method, rawURL string, timeout time.Duration, body io.Reader) (*FetchResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return nil, cortexerr.New(cortexerr.Parse, "building request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cortexerr.New(cortexerr.Network, fmt.Sprintf("%s %s", method, rawURL), err)
	}
	defer resp.Body.Close()

	var respBody []byte
	if method != http.MethodHead {
		respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, cortexerr.New(cortexerr.Network, "reading body", err)
		}
		respBody = decodeCharset(respBody, resp.Header.Get("Content-Type"))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		URL:      rawURL,
		FinalURL: finalURL,
		Status:   resp.StatusCode,
		Headers:  resp.Header,
		Body:     respBody,
	}, nil
}

// Get performs a GET request with the given timeout.
func (c *HttpClient) Get(ctx context.Context, rawURL string, timeout time.Duration) (*FetchResult, error) {
	return c.do(ctx, http.MethodGet, rawURL, timeout, nil)
}

// Head performs a HEAD request with the given timeout.
func (c *HttpClient) Head(ctx context.Context, rawURL string, timeout time.Duration) (*FetchResult, error) {
	return c.do(ctx, http.MethodHead, rawURL, timeout, nil)
}

// PostForm submits a POST with url-encoded form fields and optional extra
// headers, used by the password-login flow (§4.10).
func (c *HttpClient) PostForm(ctx context.Context, rawURL string, fields map[string]string, extraHeaders map[string]string, timeout time.Duration) (*FetchResult, error) {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, cortexerr.New(cortexerr.Parse, "building form request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cortexerr.New(cortexerr.Network, fmt.Sprintf("POST %s", rawURL), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, cortexerr.New(cortexerr.Network, "reading form response body", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		URL:      rawURL,
		FinalURL: finalURL,
		Status:   resp.StatusCode,
		Headers:  resp.Header,
		Body:     decodeCharset(respBody, resp.Header.Get("Content-Type")),
	}, nil
}

// HeadMany performs HEAD requests against every URL, bounding concurrency
// at maxConcurrency (§4.2 strategy 5). Per-URL failures are recorded as a
// nil result at that index rather than aborting the batch.
func (c *HttpClient) HeadMany(ctx context.Context, urls []string, maxConcurrency int, timeout time.Duration) []*FetchResult {
	results := make([]*FetchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			result, err := c.Head(gctx, u, timeout)
			if err != nil {
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// decodeCharset sniffs a non-UTF-8 body's encoding with chardet when the
// Content-Type header carries no charset, then transcodes it to UTF-8 via
// golang.org/x/net/html/charset. Falls back to the raw bytes whenever
// detection or transcoding fails, since XML/feed parsing downstream handle
// malformed input as a Parse error rather than a hard failure.
func decodeCharset(body []byte, contentType string) []byte {
	if len(body) == 0 || strings.Contains(strings.ToLower(contentType), "utf-8") {
		return body
	}

	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		detector := chardet.NewTextDetector()
		result, err := detector.DetectBest(body)
		if err != nil || result == nil || strings.EqualFold(result.Charset, "UTF-8") || strings.EqualFold(result.Charset, "ASCII") {
			return body
		}
		label = result.Charset
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return decoded
}
