package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rbroggi/parcelhub/internal/core/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleArgs configures the Google provider. The endpoint and user info URLs can be overridden for tests.
type GoogleArgs struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// Google implements ports.IdentityProvider with Google's OAuth 2.0 flow.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogle creates a new Google provider.
func NewGoogle(args GoogleArgs) *Google {
	endpoint := google.Endpoint
	if args.Endpoint != nil {
		endpoint = *args.Endpoint
	}
	userInfoURL := args.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}
	return &Google{
		config: &oauth2.Config{
			ClientID:     args.ClientID,
			ClientSecret: args.ClientSecret,
			RedirectURL:  args.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
	}
}

// Name returns the provider name stored on user auth records.
func (g *Google) Name() string {
	return model.ProviderGoogle
}

// LoginURL returns the consent page URL. The state round-trips back to the callback.
func (g *Google) LoginURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades the authorization code for a token and fetches the user's profile.
func (g *Google) Exchange(ctx context.Context, code string) (*model.FederatedIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error exchanging authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating user info request: %w", err)
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("user info is missing sub or email")
	}
	return &model.FederatedIdentity{
		Provider:   model.ProviderGoogle,
		ProviderID: info.Sub,
		Email:      info.Email,
		Name:       info.Name,
		Picture:    info.Picture,
	}, nil
}
