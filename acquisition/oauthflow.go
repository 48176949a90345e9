package acquisition

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// OAuthOutcomeKind is the sum type driving the OAuth HTTP flow (§4.10,
// Design Note "Coroutine control flow"). OAuth and MFA pause for external
// input, so the flow is modeled as this explicit, serializable state
// rather than a suspended coroutine.
type OAuthOutcomeKind int

const (
	SilentSuccess OAuthOutcomeKind = iota
	ConsentRequired
	MfaRequired
	BrowserFallbackNeeded
)

// MfaType is the kind of second factor an MfaRequired outcome detected.
type MfaType int

const (
	MfaUnknown MfaType = iota
	MfaTOTP
	MfaSMS
	MfaEmail
	MfaPush
)

func (t MfaType) String() string {
	switch t {
	case MfaTOTP:
		return "totp"
	case MfaSMS:
		return "sms"
	case MfaEmail:
		return "email"
	case MfaPush:
		return "push"
	default:
		return "unknown"
	}
}

// OAuthOutcome is the result of following an OAuth authorization URL.
// Exactly one group of fields is meaningful, selected by Kind.
type OAuthOutcome struct {
	Kind OAuthOutcomeKind

	// SilentSuccess
	Code string

	// MfaRequired
	MfaKind   MfaType
	FormURL   string
	FormHTML  string

	// ConsentRequired
	Scopes  []string
	AppName string

	// BrowserFallbackNeeded
	Reason string
}

var hiddenInputRe = regexp.MustCompile(`(?is)<input\b[^>]*type\s*=\s*["']hidden["'][^>]*>`)
var nameAttrRe = regexp.MustCompile(`(?i)name\s*=\s*["']([^"']+)["']`)
var valueAttrRe = regexp.MustCompile(`(?i)value\s*=\s*["']([^"']*?)["']`)

// FollowOAuthURL fetches authURL (following redirects) and classifies the
// result into one of the four OAuth outcomes (§4.10 OAuth HTTP flow).
func FollowOAuthURL(ctx context.Context, client *HttpClient, authURL string) (OAuthOutcome, error) {
	resp, err := client.Get(ctx, authURL, 15*time.Second)
	if err != nil {
		return OAuthOutcome{}, err
	}

	if code := extractAuthCodeFromURL(resp.FinalURL); code != "" {
		return OAuthOutcome{Kind: SilentSuccess, Code: code}, nil
	}

	body := string(resp.Body)
	if code := extractAuthCodeFromBody(body); code != "" {
		return OAuthOutcome{Kind: SilentSuccess, Code: code}, nil
	}

	lower := strings.ToLower(body)

	if mfaKind, ok := detectMfaType(lower); ok {
		return OAuthOutcome{Kind: MfaRequired, MfaKind: mfaKind, FormURL: resp.FinalURL, FormHTML: body}, nil
	}

	if looksLikeConsentPage(lower) {
		return OAuthOutcome{
			Kind:    ConsentRequired,
			Scopes:  extractConsentScopes(body),
			AppName: extractConsentAppName(body),
		}, nil
	}

	return OAuthOutcome{Kind: BrowserFallbackNeeded, Reason: "no code, MFA, or consent markers found in OAuth response"}, nil
}

// CompleteOAuthForm POSTs an OAuth form's hidden fields plus
// submit_access=true to continue a consent or MFA flow, then extracts the
// resulting authorization code (§4.10 flow completion).
func CompleteOAuthForm(ctx context.Context, client *HttpClient, formActionURL, formHTML string) (string, error) {
	fields := extractHiddenFields(formHTML)
	fields["submit_access"] = "true"

	resp, err := client.PostForm(ctx, formActionURL, fields, nil, 15*time.Second)
	if err != nil {
		return "", err
	}

	if code := extractAuthCodeFromURL(resp.FinalURL); code != "" {
		return code, nil
	}
	return extractAuthCodeFromBody(string(resp.Body)), nil
}

// extractAuthCodeFromURL returns the `code` query parameter, or "" if
// absent (§8 testable law).
func extractAuthCodeFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("code")
}

var bodyCodeRe = regexp.MustCompile(`(?i)"code"\s*:\s*"([^"]+)"`)

func extractAuthCodeFromBody(body string) string {
	m := bodyCodeRe.FindStringSubmatch(body)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

func detectMfaType(lowerBody string) (MfaType, bool) {
	switch {
	case strings.Contains(lowerBody, "authenticator") || strings.Contains(lowerBody, "totp") || strings.Contains(lowerBody, "6-digit"):
		return MfaTOTP, true
	case strings.Contains(lowerBody, "sms") || strings.Contains(lowerBody, "phone"):
		return MfaSMS, true
	case strings.Contains(lowerBody, "email") && strings.Contains(lowerBody, "code"):
		return MfaEmail, true
	case strings.Contains(lowerBody, "push") || strings.Contains(lowerBody, "duo"):
		return MfaPush, true
	default:
		return MfaUnknown, false
	}
}

func looksLikeConsentPage(lowerBody string) bool {
	return strings.Contains(lowerBody, "wants to access") ||
		strings.Contains(lowerBody, "is requesting access") ||
		strings.Contains(lowerBody, "allow access") ||
		strings.Contains(lowerBody, "grant access") ||
		strings.Contains(lowerBody, "authorize access")
}

var scopeLineRe = regexp.MustCompile(`(?i)scope[s]?["':\s]+([a-z0-9_,\.\s]+)`)

func extractConsentScopes(body string) []string {
	m := scopeLineRe.FindStringSubmatch(body)
	if len(m) != 2 {
		return nil
	}
	var scopes []string
	for _, s := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' }) {
		if s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

var appNameRe = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)

func extractConsentAppName(body string) string {
	m := appNameRe.FindStringSubmatch(body)
	if len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractHiddenFields(html string) map[string]string {
	fields := make(map[string]string)
	for _, inputTag := range hiddenInputRe.FindAllString(html, -1) {
		nameMatch := nameAttrRe.FindStringSubmatch(inputTag)
		if len(nameMatch) != 2 {
			continue
		}
		value := ""
		if valMatch := valueAttrRe.FindStringSubmatch(inputTag); len(valMatch) == 2 {
			value = valMatch[1]
		}
		fields[nameMatch[1]] = value
	}
	return fields
}
