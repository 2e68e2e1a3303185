package config

import (
	"os"
	"strings"
)

// OAuthProviderOptions holds one provider's confidential-client credentials.
type OAuthProviderOptions struct {
	ClientId     string
	ClientSecret string
	RedirectUri  string
}

func (o OAuthProviderOptions) IsConfigured() bool {
	return strings.TrimSpace(o.ClientId) != "" && strings.TrimSpace(o.ClientSecret) != ""
}

// GetXeroOAuthOptions reads the Xero confidential-client settings from env.
func GetXeroOAuthOptions() OAuthProviderOptions {
	return OAuthProviderOptions{
		ClientId:     strings.TrimSpace(os.Getenv("XERO_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("XERO_CLIENT_SECRET")),
		RedirectUri:  strings.TrimSpace(os.Getenv("XERO_REDIRECT_URI")),
	}
}

// GetQboOAuthOptions reads the QuickBooks Online settings from env.
func GetQboOAuthOptions() OAuthProviderOptions {
	return OAuthProviderOptions{
		ClientId:     strings.TrimSpace(os.Getenv("QBO_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("QBO_CLIENT_SECRET")),
		RedirectUri:  strings.TrimSpace(os.Getenv("QBO_REDIRECT_URI")),
	}
}
