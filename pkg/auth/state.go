package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// storedCookie is one cookie in the exported browser state file. Expires
// is a unix timestamp in seconds; -1 marks a session cookie.
type storedCookie struct {
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	Expires float64 `json:"expires"`
}

type storedState struct {
	Cookies []storedCookie `json:"cookies"`
}

// credentialState is a parsed state file.
type credentialState struct {
	modTime time.Time
	cookies map[string]storedCookie
}

func readState(path string) (*credentialState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser state: %w", err)
	}

	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse browser state: %w", err)
	}

	st := &credentialState{
		modTime: info.ModTime(),
		cookies: make(map[string]storedCookie, len(stored.Cookies)),
	}
	for _, c := range stored.Cookies {
		// Keep the longest-lived copy when a name appears on several domains.
		if prev, ok := st.cookies[c.Name]; ok && !laterExpiry(c.Expires, prev.Expires) {
			continue
		}
		st.cookies[c.Name] = c
	}
	return st, nil
}

func laterExpiry(a, b float64) bool {
	if a <= 0 {
		return b > 0
	}
	return b > 0 && a > b
}

// expiry returns the cookie's expiry time, or zero for a session cookie.
func (c storedCookie) expiry() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(c.Expires), 0)
}
