package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MEKXH/tether/internal/policy"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	defaultBraveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"
	defaultDuckSearchEndpoint  = "https://duckduckgo.com/html/"
	defaultWebTimeout          = 15 * time.Second
	defaultWebFetchMaxBytes    = 256 * 1024
	maxWebFetchBytes           = 1024 * 1024
	maxWebSearchResults        = 20
	webUserAgent               = "tether/1.0"
)

var (
	htmlScriptRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyleRe     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlTagRe       = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlSpaceRe     = regexp.MustCompile(`\s+`)
	ddgResultLinkRe = regexp.MustCompile(`(?is)<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
)

// errPrivateAddress is returned when a fetch target resolves to a non-public address.
var errPrivateAddress = errors.New("address is not publicly routable")

// WebOptions configures web_fetch and web_search.
type WebOptions struct {
	Timeout          time.Duration
	FetchMaxBytes    int
	SearchAPIKey     string
	SearchMaxResults int
}

type WebSearchInput struct {
	Query      string `json:"query" jsonschema:"required,description=The search query"`
	MaxResults int    `json:"max_results" jsonschema:"description=Optional per-request result limit"`
}

type WebSearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type WebSearchOutput struct {
	Query   string            `json:"query"`
	Results []WebSearchResult `json:"results"`
}

type webSearchToolImpl struct {
	apiKey        string
	maxResults    int
	braveEndpoint string
	duckEndpoint  string
	client        *http.Client
}

func (w *webSearchToolImpl) validate(ctx context.Context, input *WebSearchInput) error {
	if strings.TrimSpace(input.Query) == "" {
		return Invalidf("query is required")
	}
	if input.MaxResults < 0 {
		return Invalidf("max_results must be >= 0")
	}
	return nil
}

func (w *webSearchToolImpl) execute(ctx context.Context, input *WebSearchInput) (*WebSearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	limit := firstPositive(maxWebSearchResults, input.MaxResults, w.maxResults, 5)

	// Brave needs a key; any Brave failure other than cancellation falls through to DuckDuckGo.
	if strings.TrimSpace(w.apiKey) != "" {
		out, err := w.searchWithBrave(ctx, query, limit)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return w.searchWithDuckDuckGo(ctx, query, limit)
}

func (w *webSearchToolImpl) searchWithBrave(ctx context.Context, query string, limit int) (*WebSearchOutput, error) {
	target, err := withQuery(w.braveEndpoint, url.Values{"q": {query}, "count": {strconv.Itoa(limit)}})
	if err != nil {
		return nil, err
	}
	resp, err := getBounded(ctx, w.client, target.String(), http.Header{
		"Accept":               {"application/json"},
		"X-Subscription-Token": {strings.TrimSpace(w.apiKey)},
	}, maxWebFetchBytes)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.failure("brave search")
	}

	var decoded struct {
		Web struct {
			Results []WebSearchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(resp.body, &decoded); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}
	results := decoded.Web.Results
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []WebSearchResult{}
	}
	return &WebSearchOutput{Query: query, Results: results}, nil
}

func (w *webSearchToolImpl) searchWithDuckDuckGo(ctx context.Context, query string, limit int) (*WebSearchOutput, error) {
	target, err := withQuery(w.duckEndpoint, url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}
	resp, err := getBounded(ctx, w.client, target.String(), http.Header{"Accept": {"text/html"}}, maxWebFetchBytes)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.failure("duckduckgo search")
	}

	results := []WebSearchResult{}
	for _, m := range ddgResultLinkRe.FindAllStringSubmatch(string(resp.body), limit) {
		href := strings.TrimSpace(html.UnescapeString(m[1]))
		title := htmlToText(html.UnescapeString(m[2]))
		if href == "" || title == "" {
			continue
		}
		results = append(results, WebSearchResult{Title: title, URL: decodeDuckRedirect(href, target)})
	}
	return &WebSearchOutput{Query: query, Results: results}, nil
}

// boundedResponse is an HTTP response whose body was cut at a byte limit.
type boundedResponse struct {
	status      int
	contentType string
	body        []byte
	truncated   bool
}

func (r *boundedResponse) failure(what string) error {
	snippet := r.body
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	return fmt.Errorf("%s failed with status %d: %s", what, r.status, strings.TrimSpace(string(snippet)))
}

// getBounded issues a GET and reads at most limit bytes of the body.
func getBounded(ctx context.Context, client *http.Client, target string, header http.Header, limit int) (*boundedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	out := &boundedResponse{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type")}
	if len(body) > limit {
		body, out.truncated = body[:limit], true
	}
	out.body = body
	return out, nil
}

func withQuery(endpoint string, values url.Values) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for key, v := range values {
		q[key] = v
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// firstPositive returns the first positive candidate capped at ceiling.
func firstPositive(ceiling int, candidates ...int) int {
	for _, c := range candidates {
		if c > 0 {
			return min(c, ceiling)
		}
	}
	return ceiling
}

func decodeDuckRedirect(rawURL string, base *url.URL) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	if strings.HasPrefix(parsed.Path, "/l/") {
		if uddg := strings.TrimSpace(parsed.Query().Get("uddg")); uddg != "" {
			return uddg
		}
	}
	if base != nil {
		return base.ResolveReference(parsed).String()
	}
	return rawURL
}

func (w *webSearchToolImpl) format(in *WebSearchInput, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**web_search** %q\n", in.Query)
	appendResult(&b, result)
	return b.String()
}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool(opts WebOptions) (Contract, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	maxResults := opts.SearchMaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	impl := &webSearchToolImpl{
		apiKey:        opts.SearchAPIKey,
		maxResults:    maxResults,
		braveEndpoint: defaultBraveSearchEndpoint,
		duckEndpoint:  defaultDuckSearchEndpoint,
		client:        &http.Client{Timeout: timeout},
	}
	return newWebSearchContract(impl)
}

func newWebSearchContract(impl *webSearchToolImpl) (Contract, error) {
	inner, err := utils.InferTool("web_search", "Search the web for up-to-date information", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("web_search", impl.format)),
		WithPolicy(policy.ReadOnly),
	)
}

type WebFetchInput struct {
	URL      string `json:"url" jsonschema:"required,description=The target URL to fetch"`
	MaxBytes int    `json:"max_bytes" jsonschema:"description=Optional maximum response bytes to keep"`
}

type WebFetchOutput struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Truncated   bool   `json:"truncated"`
}

type webFetchToolImpl struct {
	client   *http.Client
	maxBytes int
	// lookup resolves host names during validation; nil skips resolution.
	lookup func(ctx context.Context, host string) ([]netip.Addr, error)
}

// publicAddr reports whether addr may be fetched.
func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}

func (w *webFetchToolImpl) validate(ctx context.Context, input *WebFetchInput) error {
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return Invalidf("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Invalidf("invalid url: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Invalidf("unsupported url scheme: %q", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return Invalidf("url has no host")
	}
	if input.MaxBytes < 0 {
		return Invalidf("max_bytes must be >= 0")
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return Invalidf("refusing to fetch %s: %v", host, errPrivateAddress)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if !publicAddr(addr) {
			return Invalidf("refusing to fetch %s: %v", host, errPrivateAddress)
		}
		return nil
	}
	if w.lookup == nil {
		return nil
	}
	addrs, err := w.lookup(ctx, host)
	if err != nil {
		return Invalidf("cannot resolve %s: %v", host, err)
	}
	for _, addr := range addrs {
		if !publicAddr(addr) {
			return Invalidf("refusing to fetch %s (%s): %v", host, addr, errPrivateAddress)
		}
	}
	return nil
}

func (w *webFetchToolImpl) execute(ctx context.Context, input *WebFetchInput) (*WebFetchOutput, error) {
	target := strings.TrimSpace(input.URL)
	limit := firstPositive(maxWebFetchBytes, input.MaxBytes, w.maxBytes, defaultWebFetchMaxBytes)

	resp, err := getBounded(ctx, w.client, target, nil, limit)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, fmt.Errorf("web fetch failed with status %d", resp.status)
	}

	content := string(resp.body)
	if strings.Contains(strings.ToLower(resp.contentType), "text/html") {
		content = htmlToText(content)
	}
	return &WebFetchOutput{
		URL:         target,
		Status:      resp.status,
		ContentType: resp.contentType,
		Content:     strings.TrimSpace(content),
		Truncated:   resp.truncated,
	}, nil
}

func (w *webFetchToolImpl) format(in *WebFetchInput, result *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**web_fetch** <%s>\n", in.URL)
	appendResult(&b, result)
	return b.String()
}

// guardedDialer refuses connections to non-public addresses after DNS
// resolution, covering redirects and rebinding that validation cannot see.
func guardedDialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return err
			}
			if !publicAddr(addr) {
				return fmt.Errorf("dial %s: %w", address, errPrivateAddress)
			}
			return nil
		},
	}
}

func resolveHost(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// NewWebFetchTool creates the web_fetch tool.
func NewWebFetchTool(opts WebOptions) (Contract, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = guardedDialer(timeout).DialContext
	impl := &webFetchToolImpl{
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxBytes: opts.FetchMaxBytes,
		lookup:   resolveHost,
	}
	return newWebFetchContract(impl)
}

func newWebFetchContract(impl *webFetchToolImpl) (Contract, error) {
	inner, err := utils.InferTool("web_fetch", "Fetch content from a URL", impl.execute)
	if err != nil {
		return nil, err
	}
	return NewContract(inner,
		WithValidator(ValidateAs(impl.validate)),
		WithFormatter(FormatAs("web_fetch", impl.format)),
		WithPolicy(policy.ReadOnly),
	)
}

func htmlToText(input string) string {
	s := htmlScriptRe.ReplaceAllString(input, " ")
	s = htmlStyleRe.ReplaceAllString(s, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = htmlSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
