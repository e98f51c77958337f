package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/browserutils/kooky"
	// Register all supported browsers for kooky.
	_ "github.com/browserutils/kooky/browser/all"

	"fetcharr/internal/utils/logging"
)

// CookieManager extracts browser cookies per domain and materializes them as
// Netscape cookie files the fetch engine can consume.
type CookieManager struct {
	dir string

	mu    sync.RWMutex
	files map[string]string // domain -> cookie file path
}

// NewCookieManager writes cookie files under dir.
func NewCookieManager(dir string) (*CookieManager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create cookie directory %q: %w", dir, err)
	}
	return &CookieManager{
		dir:   dir,
		files: make(map[string]string),
	}, nil
}

// CookieFile returns a cookie file path for the URL's domain, writing it on
// first use. Returns an empty path when the browser holds no cookies for the
// domain.
func (cm *CookieManager) CookieFile(ctx context.Context, rawURL string) (string, error) {
	domain, err := baseDomain(rawURL)
	if err != nil {
		return "", fmt.Errorf("error extracting base domain for cookies: %w", err)
	}

	cm.mu.RLock()
	if path, ok := cm.files[domain]; ok {
		cm.mu.RUnlock()
		return path, nil
	}
	cm.mu.RUnlock()

	cookies := loadCookiesForDomain(domain)

	path := ""
	if len(cookies) > 0 {
		path = filepath.Join(cm.dir, domain+".txt")
		if err := saveCookiesToFile(cookies, domain, path); err != nil {
			return "", err
		}
	}

	cm.mu.Lock()
	cm.files[domain] = path
	cm.mu.Unlock()
	return path, nil
}

// loadCookiesForDomain reads valid browser cookies for a domain from every
// cookie store kooky can find.
func loadCookiesForDomain(domain string) []*http.Cookie {
	var httpCookies []*http.Cookie
	for _, store := range kooky.FindAllCookieStores() {
		cookies, err := store.ReadCookies(kooky.Valid, kooky.Domain(domain))
		if err != nil {
			logging.D(2, "Failed to read cookies from %s: %v", store.Browser(), err)
			continue
		}
		for _, c := range cookies {
			httpCookies = append(httpCookies, &http.Cookie{
				Name:    c.Name,
				Value:   c.Value,
				Path:    c.Path,
				Domain:  c.Domain,
				Expires: c.Expires,
				Secure:  c.Secure,
			})
		}
	}
	if len(httpCookies) == 0 {
		logging.D(1, "No cookies found for %s", domain)
		return nil
	}
	logging.I("Found %d cookies for %s", len(httpCookies), domain)
	return httpCookies
}

// saveCookiesToFile writes the cookies to path in Netscape format.
func saveCookiesToFile(cookies []*http.Cookie, domain, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.E("failed to close cookie file %q: %v", path, err)
		}
	}()

	if _, err := f.WriteString("# Netscape HTTP Cookie File\n# https://curl.haxx.se/rfc/cookie_spec.html\n# This is a generated file! Do not edit.\n\n"); err != nil {
		return err
	}

	logging.D(1, "Saving %d cookies to file %s", len(cookies), path)

	for _, cookie := range cookies {
		d := cookie.Domain
		if d == "" {
			d = domain
		}
		if !strings.HasPrefix(d, ".") && strings.Count(d, ".") > 1 {
			d = "." + d
		}

		secure := "FALSE"
		if cookie.Secure {
			secure = "TRUE"
		}

		var expires int64
		if !cookie.Expires.IsZero() {
			expires = cookie.Expires.Unix()
		}

		cookiePath := cookie.Path
		if cookiePath == "" {
			cookiePath = "/"
		}

		if _, err := fmt.Fprintf(f, "%s\tTRUE\t%s\t%s\t%d\t%s\t%s\n",
			d, cookiePath, secure, expires, cookie.Name, cookie.Value); err != nil {
			return err
		}
	}
	return nil
}

// baseDomain strips the scheme, port, and leading "www." from a URL.
func baseDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in URL %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}
