// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jeranaias/aila/internal/util"
)

// NewMemoryJar returns an in-memory jar using public-suffix domain rules.
func NewMemoryJar() http.CookieJar {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// =============================================================================
// FILE JAR
// =============================================================================

// storedCookie is the on-disk form of one cookie.
type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) key() string {
	return s.URL + "|" + s.Domain + "|" + s.Path + "|" + s.Name
}

// FileJar is a cookie jar that mirrors every cookie it receives to a file
// so the session outlives the process. Session cookies are persisted too.
//
// SECURITY: The file holds session credentials; it is written with mode
// 0600 inside a 0700 directory.
type FileJar struct {
	mu      sync.Mutex
	path    string
	jar     *cookiejar.Jar
	cookies map[string]storedCookie
	now     func() time.Time
}

// NewFileJar loads the jar stored at path. A missing file yields an
// empty jar; an unreadable or corrupt one is an error.
func NewFileJar(path string) (*FileJar, error) {
	j := &FileJar{
		path:    path,
		cookies: make(map[string]storedCookie),
		now:     time.Now,
	}
	j.jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var stored []storedCookie
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("parse cookie file: %w", err)
		}
	}

	now := j.now()
	for _, sc := range stored {
		if !sc.Expires.IsZero() && sc.Expires.Before(now) {
			continue
		}
		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{sc.cookie()})
		j.cookies[sc.key()] = sc
	}
	return j, nil
}

func (s storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HttpOnly,
	}
}

// SetCookies implements http.CookieJar and saves the jar.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	now := j.now()
	for _, c := range cookies {
		sc := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		expired := c.MaxAge < 0 || (!sc.Expires.IsZero() && sc.Expires.Before(now))
		if expired || c.Value == "" {
			delete(j.cookies, sc.key())
			continue
		}
		j.cookies[sc.key()] = sc
	}

	// Save failures leave the in-memory jar intact; the next write retries.
	_ = j.saveLocked()
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Len returns the number of persisted cookies.
func (j *FileJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

// Clear forgets every cookie and removes the file.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.cookies = make(map[string]storedCookie)
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}

// Save writes the jar to disk.
func (j *FileJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveLocked()
}

func (j *FileJar) saveLocked() error {
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		stored = append(stored, sc)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return util.AtomicWriteFileWithDir(j.path, data, 0600, 0700)
}
