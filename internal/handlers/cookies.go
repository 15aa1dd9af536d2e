package handlers

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refreshToken"

type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func CreateCookie(name, value, path string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func DeleteCookie(name, path string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (cc CookieConfig) refresh(token string) *http.Cookie {
	return CreateCookie(RefreshCookieName, token, "/", cc.MaxAge, cc.Secure)
}

func (cc CookieConfig) clearRefresh() *http.Cookie {
	return DeleteCookie(RefreshCookieName, "/", cc.Secure)
}
