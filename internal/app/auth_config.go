package app

import (
	"github.com/listenme/listenme/internal/auth"
	"github.com/listenme/listenme/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTokenTTL
	}

	return auth.JWTConfig{
		Secret: c.JWT.Secret,
		Issuer: c.JWT.Issuer,
		TTL:    ttl,
	}
}

// AuthServiceConfig converts AuthConfig into the auth state machine parameters.
// The app URL and the unsent-mail switch live under other config sections, so
// the caller passes them in.
func (c AuthConfig) AuthServiceConfig(appURL string, allowUnsentMail bool) services.AuthConfig {
	return services.AuthConfig{
		AdminEmail:      c.AdminEmail,
		AppURL:          appURL,
		LoginMode:       services.LoginMode(c.LoginMode),
		AllowUnsentMail: allowUnsentMail,
	}
}
