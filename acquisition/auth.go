package acquisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/cortex/cortexerr"
)

// LoginMethodKind discriminates LoginMethod's variants (§4.2 strategy 7 /
// auth discovery).
type LoginMethodKind int

const (
	LoginUnknown LoginMethodKind = iota
	LoginPassword
	LoginOAuth
	LoginAPIKey
)

// LoginFormField is one input field of a discovered login form.
type LoginFormField struct {
	Name       string
	FieldType  string
	Value      string
	IsUsername bool
	IsPassword bool
}

// LoginMethod is the discovered way to authenticate against a domain.
// Exactly one of the variant-specific fields is meaningful, selected by
// Kind.
type LoginMethod struct {
	Kind LoginMethodKind

	// LoginPassword
	FormURL    string
	FormAction string
	Method     string
	Fields     []LoginFormField

	// LoginOAuth
	Providers []string

	// LoginAPIKey
	DocsURL string
}

var wellKnownLoginPaths = []string{"/login", "/signin", "/auth/login", "/account/login", "/wp-login.php"}

var loginLinkPatterns = []string{
	"/login", "/signin", "/sign-in", "/auth", "/account/login",
	"/wp-login.php", "/users/sign_in", "/session/new",
}

var oauthPatterns = []struct {
	substr   string
	provider string
}{
	{"accounts.google.com", "google"},
	{"github.com/login/oauth", "github"},
	{"facebook.com/v", "facebook"},
	{"login.microsoftonline.com", "microsoft"},
	{"appleid.apple.com", "apple"},
	{"twitter.com/oauth", "twitter"},
	{"api.twitter.com/oauth", "twitter"},
}

// DiscoverLoginMethod fetches the homepage and a set of candidate login
// URLs (discovered links plus well-known paths) and returns the first
// login method it can identify.
func DiscoverLoginMethod(ctx context.Context, client *HttpClient, domain string) (LoginMethod, error) {
	baseURL := "https://" + domain

	homepage, err := client.Get(ctx, baseURL, 15*time.Second)
	if err != nil {
		return LoginMethod{}, err
	}

	candidates := findLoginLinks(string(homepage.Body), baseURL)
	for _, wk := range wellKnownLoginPaths {
		url := baseURL + wk
		if !containsStr(candidates, url) {
			candidates = append(candidates, url)
		}
	}

	for _, candidateURL := range candidates {
		resp, err := client.Get(ctx, candidateURL, 15*time.Second)
		if err != nil || resp.Status != 200 {
			continue
		}
		if method, ok := parseLoginForm(string(resp.Body), resp.FinalURL); ok {
			return method, nil
		}
	}

	if method, ok := detectOAuthFromHTML(string(homepage.Body)); ok && len(method.Providers) > 0 {
		return method, nil
	}

	return LoginMethod{Kind: LoginUnknown}, nil
}

// LoginPasswordFlow discovers the login form for domain, fills in
// username/password (preserving hidden fields such as CSRF tokens),
// POSTs it, and returns an authenticated HttpSession built from the
// response's Set-Cookie headers.
func LoginPasswordFlow(ctx context.Context, client *HttpClient, domain, username, password string) (*HttpSession, error) {
	method, err := DiscoverLoginMethod(ctx, client, domain)
	if err != nil {
		return nil, err
	}
	if method.Kind != LoginPassword {
		return nil, cortexerr.New(cortexerr.NotFound, fmt.Sprintf("no password login form found for %s", domain), nil)
	}
	if method.Method != "POST" {
		return nil, cortexerr.New(cortexerr.Unsupported, fmt.Sprintf("login form uses %s, expected POST", method.Method), nil)
	}

	formData := make(map[string]string, len(method.Fields))
	var csrfToken string
	for _, field := range method.Fields {
		switch {
		case field.IsUsername:
			formData[field.Name] = username
		case field.IsPassword:
			formData[field.Name] = password
		case field.Value != "":
			formData[field.Name] = field.Value
		}
		if isCSRFFieldName(field.Name) {
			csrfToken = field.Value
		}
	}

	resp, err := client.PostForm(ctx, method.FormAction, formData, nil, 15*time.Second)
	if err != nil {
		return nil, err
	}

	cookies := parseSetCookies(resp.Headers.Values("Set-Cookie"))
	if len(cookies) == 0 && resp.Status >= 400 {
		return nil, cortexerr.New(cortexerr.HttpStatus, fmt.Sprintf("login failed for %s: status %d with no cookies", domain, resp.Status), nil)
	}

	session := NewHttpSession(domain, AuthPassword, time.Now())
	for name, value := range cookies {
		session.AddCookie(name, value)
	}
	session.CSRFToken = csrfToken
	return session, nil
}

// LoginAPIKey creates an API-key authenticated session without any
// network call.
func LoginAPIKey(domain, key, headerName string) *HttpSession {
	session := NewHttpSession(domain, AuthApiKey, time.Now())
	session.AddAuthHeader(headerName, key)
	return session
}

// LoginBearer creates a bearer-token authenticated session without any
// network call.
func LoginBearer(domain, token string) *HttpSession {
	session := NewHttpSession(domain, AuthBearer, time.Now())
	session.AddAuthHeader("Authorization", "Bearer "+token)
	return session
}

func findLoginLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var found []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		lower := strings.ToLower(href)
		for _, p := range loginLinkPatterns {
			if strings.Contains(lower, p) {
				resolved := resolveAuthURL(baseURL, href)
				if !containsStr(found, resolved) {
					found = append(found, resolved)
				}
				break
			}
		}
	})
	return found
}

// parseLoginForm looks for a <form> containing a password input. If none
// is found it falls back to OAuth-button detection.
func parseLoginForm(html, baseURL string) (LoginMethod, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return LoginMethod{}, false
	}

	var method LoginMethod
	found := false
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if form.Find(`input[type="password"]`).Length() == 0 {
			return true
		}

		action, _ := form.Attr("action")
		formAction := resolveAuthURL(baseURL, action)
		httpMethod, _ := form.Attr("method")
		if httpMethod == "" {
			httpMethod = "POST"
		} else {
			httpMethod = strings.ToUpper(httpMethod)
		}

		var fields []LoginFormField
		form.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, ok := input.Attr("name")
			if !ok || name == "" {
				return
			}
			fieldType, _ := input.Attr("type")
			if fieldType == "" {
				fieldType = "text"
			}
			fieldType = strings.ToLower(fieldType)
			value, _ := input.Attr("value")

			isPassword := fieldType == "password"
			isUsername := !isPassword && (fieldType == "text" || fieldType == "email") && isUsernameFieldName(name)

			fields = append(fields, LoginFormField{
				Name:       name,
				FieldType:  fieldType,
				Value:      value,
				IsUsername: isUsername,
				IsPassword: isPassword,
			})
		})

		hasUsername := false
		for _, f := range fields {
			if f.IsUsername {
				hasUsername = true
				break
			}
		}
		if !hasUsername {
			for i := range fields {
				f := &fields[i]
				if (f.FieldType == "text" || f.FieldType == "email") && !isCSRFFieldName(f.Name) {
					f.IsUsername = true
					break
				}
			}
		}

		method = LoginMethod{
			Kind:       LoginPassword,
			FormURL:    baseURL,
			FormAction: formAction,
			Method:     httpMethod,
			Fields:     fields,
		}
		found = true
		return false
	})

	if found {
		return method, true
	}
	return detectOAuthFromHTML(html)
}

func detectOAuthFromHTML(html string) (LoginMethod, bool) {
	lower := strings.ToLower(html)
	var providers []string
	for _, p := range oauthPatterns {
		if strings.Contains(lower, p.substr) && !containsStr(providers, p.provider) {
			providers = append(providers, p.provider)
		}
	}
	if len(providers) == 0 {
		return LoginMethod{}, false
	}
	return LoginMethod{Kind: LoginOAuth, Providers: providers}, true
}

func isUsernameFieldName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "user") ||
		strings.Contains(lower, "email") ||
		strings.Contains(lower, "login") ||
		strings.Contains(lower, "account") ||
		lower == "id" ||
		lower == "name" ||
		lower == "username"
}

// isCSRFFieldName matches the original CSRF-token-name heuristic
// (§4.10): csrf, _token, an exact authenticity_token, nonce, or xsrf.
func isCSRFFieldName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "csrf") ||
		strings.Contains(lower, "_token") ||
		lower == "authenticity_token" ||
		strings.Contains(lower, "nonce") ||
		strings.Contains(lower, "xsrf")
}

// parseSetCookies extracts name=value pairs from a list of Set-Cookie
// header values, keeping only the portion before the first ';'.
func parseSetCookies(setCookieValues []string) map[string]string {
	cookies := make(map[string]string)
	for _, value := range setCookieValues {
		cookiePart, _, _ := strings.Cut(value, ";")
		name, val, ok := strings.Cut(cookiePart, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(val)
	}
	return cookies
}

func resolveAuthURL(baseURL, relative string) string {
	if relative == "" {
		return baseURL
	}
	if strings.HasPrefix(relative, "http://") || strings.HasPrefix(relative, "https://") {
		return relative
	}
	return resolveFeedURL(relative, hostOf(baseURL))
}

func hostOf(rawURL string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	host, _, _ := strings.Cut(rest, "/")
	return host
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
