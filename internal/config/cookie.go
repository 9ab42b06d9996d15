package config

import "net/http"

func (ct *CookieTemplate) sameSite() http.SameSite {
	switch ct.SameSite {
	case CookieSameSiteNone:
		return http.SameSiteNoneMode
	case CookieSameSiteLax:
		return http.SameSiteLaxMode
	case CookieSameSiteStrict:
		return http.SameSiteStrictMode
	}

	return http.SameSiteDefaultMode
}

// ToCookie renders the template with the given value.
func (ct *CookieTemplate) ToCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     ct.Name,
		Value:    value,
		MaxAge:   ct.MaxAge,
		Path:     ct.Path,
		Domain:   ct.Domain,
		Secure:   ct.Secure,
		HttpOnly: ct.HTTPOnly,
		SameSite: ct.sameSite(),
	}
}

// Expired renders a cookie instructing the browser to drop the template's cookie.
func (ct *CookieTemplate) Expired() *http.Cookie {
	c := ct.ToCookie("")
	c.MaxAge = -1
	return c
}
