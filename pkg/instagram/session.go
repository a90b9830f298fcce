package instagram

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
)

// DefaultUserAgent is used when no user agent list is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Session is the cookie set of a logged-in Instagram web session
type Session struct {
	SessionID string `json:"session_id"`
	DSUserID  string `json:"ds_user_id"`
	CSRFToken string `json:"csrf_token"`
	RUR       string `json:"rur,omitempty"`
	MID       string `json:"mid,omitempty"`
}

// Valid reports whether the cookies needed for authenticated calls are set
func (s Session) Valid() bool {
	return s.SessionID != "" && s.CSRFToken != ""
}

// cookies returns the non-empty session cookies
func (s Session) cookies() []*http.Cookie {
	pairs := []struct{ name, value string }{
		{"sessionid", s.SessionID},
		{"ds_user_id", s.DSUserID},
		{"csrftoken", s.CSRFToken},
		{"rur", s.RUR},
		{"mid", s.MID},
	}

	var out []*http.Cookie
	for _, p := range pairs {
		if p.value != "" {
			out = append(out, &http.Cookie{Name: p.name, Value: p.value})
		}
	}
	return out
}

// UserAgentPool hands out a random user agent per request
type UserAgentPool struct {
	agents []string
	mu     sync.Mutex
	rnd    *rand.Rand
}

// NewUserAgentPool creates a pool; an empty list falls back to DefaultUserAgent
func NewUserAgentPool(agents []string) *UserAgentPool {
	var cleaned []string
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{DefaultUserAgent}
	}
	return &UserAgentPool{
		agents: cleaned,
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Pick returns one of the pool's user agents
func (p *UserAgentPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.IntN(len(p.agents))]
}

// Len returns the number of user agents in the pool
func (p *UserAgentPool) Len() int {
	return len(p.agents)
}

// LoadUserAgents reads a JSON array of user agent strings
func LoadUserAgents(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user agents file: %w", err)
	}

	var agents []string
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("failed to parse user agents file: %w", err)
	}
	return agents, nil
}
