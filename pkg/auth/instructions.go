package auth

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ParseCookieHeader fills an Account from a copied browser Cookie header,
// e.g. "sessionid=...; csrftoken=...; ds_user_id=...". Values are
// URL-unescaped except sessionid, which Instagram expects encoded.
func ParseCookieHeader(header string) (*Account, error) {
	header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Cookie:"))
	req := http.Request{Header: http.Header{"Cookie": {header}}}

	account := &Account{}
	for _, c := range req.Cookies() {
		switch c.Name {
		case "sessionid":
			account.SessionID = c.Value
		case "csrftoken":
			account.CSRFToken = unescape(c.Value)
		case "ds_user_id":
			account.DSUserID = unescape(c.Value)
		}
	}

	if account.SessionID == "" || account.CSRFToken == "" {
		return nil, fmt.Errorf("%w: cookie header needs sessionid and csrftoken", ErrInvalidCredentials)
	}
	return account, nil
}

func unescape(v string) string {
	if u, err := url.QueryUnescape(v); err == nil {
		return u
	}
	return v
}

// WriteCookieGuide prints how to copy the bot account's cookies out of a browser.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"INSTAGRAM SESSION COOKIES",
		rule,
		"",
		"The bot signs in as the account that reposts the reels. Log in to",
		"https://www.instagram.com with that account in a desktop browser, then:",
		"",
		"  1. Open Developer Tools (F12, or Cmd+Option+I on macOS).",
		"  2. Network tab, refresh the page, select any request to instagram.com.",
		"  3. Under Request Headers copy the whole 'Cookie:' value.",
		"",
		"Or copy single values from Application (Chrome) / Storage (Firefox) > Cookies:",
		"",
		"  sessionid    long value containing %3A, e.g. 12345678%3AabCdEf...",
		"  csrftoken    32 characters",
		"  ds_user_id   numeric id of the logged-in account",
		"",
		"Paste either form into 'igrepost auth login'. Sessions end when you log",
		"out in the browser or Instagram asks for a security check; the bot then",
		"reports 'Session expired' and the cookies must be captured again.",
		"",
		"These cookies grant full access to the account. They are kept in the",
		"system keychain or an encrypted file, never in the config file.",
		rule,
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
