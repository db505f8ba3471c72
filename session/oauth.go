package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

// Provider-specific structs
type gitHubUser struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

var oauthAPIs = map[string]struct {
	URL     string
	Headers map[string]string
}{
	"github": {
		URL: "https://api.github.com/user",
		Headers: map[string]string{
			"X-GitHub-Api-Version": "2022-11-28",
		},
	},
	"google": {
		URL:     "https://openidconnect.googleapis.com/v1/userinfo",
		Headers: map[string]string{},
	},
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{""},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

// addOauthEndpointsAndScopes fills provider endpoints and scopes from the
// templates. Explicitly configured endpoints are left alone.
func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	if oauthConfigs == nil {
		return map[string]*oauth2.Config{}, nil
	}
	for provider, conf := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		if conf.Endpoint.AuthURL == "" && conf.Endpoint.TokenURL == "" {
			conf.Endpoint = template.Endpoint
		}
		if conf.Scopes == nil {
			conf.Scopes = template.Scopes
		}
	}

	return oauthConfigs, nil
}

// HandleOauth exchanges an authorization code for a provider profile and
// maps it to a room identity. The user id is <provider>:<providerId>, which
// keeps ids stable across sessions so the presence color stays the same.
func (a *Authenticator) HandleOauth(ctx context.Context, provider string, code string) (Identity, error) {
	conf, ok := a.oauthConfigs[provider]
	if !ok {
		return Identity{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Println("Error:", err)
		return Identity{}, err
	}

	client := conf.Client(ctx, tok)
	api, ok := oauthAPIs[provider]
	if !ok {
		return Identity{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	req, err := http.NewRequest("GET", api.URL, nil)
	if err != nil {
		log.Println("Error:", err)
		return Identity{}, err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error:", err)
		return Identity{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println("Error:", err)
		return Identity{}, err
	}

	return parseIdentity(body, provider)
}

func parseIdentity(jsonData []byte, provider string) (Identity, error) {
	var userId, name string

	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(jsonData, &gh); err != nil {
			return Identity{}, err
		}
		userId = provider + ":" + strconv.Itoa(gh.ID)
		name = gh.Login
	case "google":
		var g googleUser
		if err := json.Unmarshal(jsonData, &g); err != nil {
			return Identity{}, err
		}
		userId = provider + ":" + g.Sub
		name = g.Email
	default:
		return Identity{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	return Identity{
		UserId:      userId,
		DisplayName: name,
		Color:       ColorFor(userId),
	}, nil
}

// Login runs the full OAuth flow and mints a room token for the resulting
// identity.
func (a *Authenticator) Login(ctx context.Context, provider, code string) (Identity, string, error) {
	identity, err := a.HandleOauth(ctx, provider, code)
	if err != nil {
		return Identity{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	token, err := a.CreateJWT(identity)
	if err != nil {
		return Identity{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return identity, token, nil
}

// GuestLogin mints a fresh guest identity and its room token.
func (a *Authenticator) GuestLogin(displayName string) (Identity, string, error) {
	identity := NewGuest(displayName)

	token, err := a.CreateJWT(identity)
	if err != nil {
		return Identity{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return identity, token, nil
}
