package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-edu-portal/session"
)

var _ session.Storage = (*CookieStorage)(nil)

// CookieStorage keeps session values in the browser's cookies for the duration of one request.
// Values written during the request are visible to later reads in the same request. Writes must
// happen before the response header is sent.
type CookieStorage struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	maxAge  time.Duration
	lock    sync.Mutex
	pending map[string]*string // nil marks a deleted cookie
}

func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool, maxAge time.Duration) *CookieStorage {
	return &CookieStorage{
		w:       w,
		r:       r,
		secure:  secure,
		maxAge:  maxAge,
		pending: make(map[string]*string),
	}
}

func (c *CookieStorage) Get(key string) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *CookieStorage) Set(key, value string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.pending[key] = &value
	http.SetCookie(c.w, c.cookie(key, value, int(c.maxAge.Seconds())))
	return nil
}

// Delete expires the cookie. Deleting a cookie the browser never sent still emits the expiry
// so a stale value cannot survive.
func (c *CookieStorage) Delete(key string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.pending[key] = nil
	http.SetCookie(c.w, c.cookie(key, "", -1))
	return nil
}

func (c *CookieStorage) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
