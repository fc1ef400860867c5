package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the identity assertion extracted from Google's userinfo
// endpoint — the only part of the OAuth exchange the rest of the service
// sees. Google returns a larger object; we unmarshal what we need.
type GoogleUser struct {
	Email      string `json:"email"`       // may be empty if the scope was denied
	GivenName  string `json:"given_name"`  // e.g. "Bob"
	FamilyName string `json:"family_name"` // e.g. "Lee"
	Picture    string `json:"picture"`     // profile photo URL
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow.
//
// The flow: we redirect the browser to Google's consent page, Google calls
// back with a short-lived code, and Exchange trades that code for the
// user's profile server-to-server. The access token never reaches the
// browser and is discarded after the one userinfo call — we only want the
// assertion, not ongoing API access.
type GoogleProvider struct {
	config      *oauth2.Config
	userinfoURL string
}

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// NewGoogleProvider creates a GoogleProvider with the given OAuth app
// credentials. callbackURL must exactly match the redirect URI registered
// in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

// AuthURL returns the consent-page URL to redirect the user to.
//
// The state parameter is a random value the handler stores in a short-lived
// cookie before redirecting; the callback rejects any response whose state
// does not match, which blocks CSRF-initiated logins.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the authorization code for a Google
// user profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that attaches the
	// bearer token to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gu GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	return &gu, nil
}
