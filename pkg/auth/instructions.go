package auth

import (
	"fmt"
	"io"
	"strings"
)

// CookieGuide lists the browser cookies a session is built from, in prompt order
var CookieGuide = []struct {
	Name     string
	Required bool
	Hint     string
}{
	{"sessionid", true, "long string containing %3A"},
	{"ds_user_id", false, "numeric id of the logged-in account"},
	{"csrftoken", true, "about 32 characters"},
	{"rur", false, "short region string, may contain quotes"},
	{"mid", false, "machine id, about 28 characters"},
}

// WriteCookieGuide writes step-by-step instructions for copying the session
// cookies out of a logged-in browser.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"🍪 INSTAGRAM SESSION COOKIES",
		rule,
		"",
		"The relay calls Instagram's web API as a logged-in user. Use a",
		"secondary account: its cookies grant full access to it.",
		"",
		"1. Log in at https://www.instagram.com in your browser",
		"2. Open Developer Tools (F12, or Cmd+Option+I on macOS)",
		"3. Application (Chrome) or Storage (Firefox) → Cookies → https://www.instagram.com",
		"4. Copy the value column of these cookies:",
		"",
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	for _, c := range CookieGuide {
		need := "optional"
		if c.Required {
			need = "required"
		}
		fmt.Fprintf(w, "   %-11s %-9s %s\n", c.Name, need, c.Hint)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cookies expire. When the bot starts answering with session errors,")
	fmt.Fprintln(w, "run 'igrelay auth login' again.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ValidateSessionID rejects values that cannot be a sessionid cookie
func ValidateSessionID(v string) error {
	if len(v) < 20 || !strings.Contains(v, "%3A") && !strings.Contains(v, ":") {
		return fmt.Errorf("%w: sessionid should be a long string containing %%3A", ErrInvalidCredentials)
	}
	return nil
}

// ValidateCSRFToken rejects values that cannot be a csrftoken cookie
func ValidateCSRFToken(v string) error {
	if len(v) < 20 || len(v) > 64 || strings.ContainsAny(v, " ;=") {
		return fmt.Errorf("%w: csrftoken should be about 32 characters", ErrInvalidCredentials)
	}
	return nil
}
