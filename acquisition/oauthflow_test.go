package acquisition

import "testing"

func TestExtractAuthCodeFromURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/cb?code=abc123&state=xyz": "abc123",
		"https://example.com/cb?state=xyz":              "",
		"not a url at all %%%":                          "",
	}
	for rawURL, want := range cases {
		if got := extractAuthCodeFromURL(rawURL); got != want {
			t.Errorf("extractAuthCodeFromURL(%q) = %q, want %q", rawURL, got, want)
		}
	}
}

func TestDetectMfaType(t *testing.T) {
	cases := []struct {
		body string
		want MfaType
		ok   bool
	}{
		{"enter the 6-digit code from your authenticator app", MfaTOTP, true},
		{"we sent a code to your phone via sms", MfaSMS, true},
		{"enter the code we emailed you", MfaEmail, true},
		{"approve this push notification via duo", MfaPush, true},
		{"please enter your password", MfaUnknown, false},
	}
	for _, c := range cases {
		kind, ok := detectMfaType(c.body)
		if ok != c.ok || kind != c.want {
			t.Errorf("detectMfaType(%q) = (%v, %v), want (%v, %v)", c.body, kind, ok, c.want, c.ok)
		}
	}
}

func TestLooksLikeConsentPage(t *testing.T) {
	if !looksLikeConsentPage("example app wants to access your account") {
		t.Error("expected consent page detection to match")
	}
	if looksLikeConsentPage("welcome back, please enter your password") {
		t.Error("did not expect consent page detection to match")
	}
}

func TestExtractHiddenFields(t *testing.T) {
	html := `
	<form>
		<input type="hidden" name="csrf_token" value="tok1" />
		<input type="hidden" name="client_id" value="abc" />
		<input type="text" name="visible" value="ignored" />
	</form>`

	fields := extractHiddenFields(html)
	if len(fields) != 2 {
		t.Fatalf("expected 2 hidden fields, got %d: %v", len(fields), fields)
	}
	if fields["csrf_token"] != "tok1" || fields["client_id"] != "abc" {
		t.Fatalf("unexpected hidden fields: %v", fields)
	}
}
