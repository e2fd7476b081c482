package auth

import (
	"net/http"
	"time"
)

const RefreshCookieName = "rt"

// CookieConfig holds refresh cookie settings. Secure is gated by environment
// so local development over plain HTTP still works.
type CookieConfig struct {
	Domain   string // empty string = current host only
	Path     string // scoped to the refresh/logout endpoints
	Secure   bool
	SameSite string // "strict", "lax", or "none"
}

// SetRefreshCookie sets the opaque refresh id in an httpOnly cookie.
// The id never reaches page scripts; it only travels on requests to the
// cookie's path.
func SetRefreshCookie(w http.ResponseWriter, refreshID string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshID,
		Path:     config.Path,
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearRefreshCookie clears the refresh cookie
func ClearRefreshCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     config.Path,
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetRefreshCookie retrieves the refresh id from the request cookies
func GetRefreshCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
