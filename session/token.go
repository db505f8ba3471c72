package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Authenticator mints and verifies the room tokens clients present when
// joining. The whole identity rides in the claims; there is no user store
// to look up.
type Authenticator struct {
	secret       []byte
	oauthConfigs map[string]*oauth2.Config
}

// NewAuthenticator builds an authenticator. The oauth configs carry client
// ids, secrets and redirect URLs; endpoints and scopes are filled in from
// the provider templates. A nil map disables OAuth login.
func NewAuthenticator(jwtSecret []byte, oauthConfigs map[string]*oauth2.Config) (*Authenticator, error) {
	configs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		secret:       jwtSecret,
		oauthConfigs: configs,
	}, nil
}

func (a *Authenticator) CreateJWT(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"id":    id.UserId,
		"name":  id.DisplayName,
		"color": id.Color,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(a.secret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (a *Authenticator) VerifyJWT(tokenString string) (Identity, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, time.Time{}, err
	}

	if !token.Valid {
		return Identity{}, time.Time{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, time.Time{}, errors.New("invalid token claims")
	}

	id, ok := claims["id"].(string)
	if !ok {
		return Identity{}, time.Time{}, errors.New("missing id claim")
	}

	name, ok := claims["name"].(string)
	if !ok {
		return Identity{}, time.Time{}, errors.New("missing name claim")
	}

	color, ok := claims["color"].(string)
	if !ok {
		return Identity{}, time.Time{}, errors.New("missing color claim")
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return Identity{}, time.Time{}, errors.New("missing exp claim")
	}
	expiry := time.Unix(int64(expFloat), 0)

	return Identity{UserId: id, DisplayName: name, Color: color}, expiry, nil
}

// AuthenticateToken resolves a presented token to the identity it carries.
func (a *Authenticator) AuthenticateToken(token string) (Identity, error) {
	if len(token) == 0 {
		return Identity{}, errors.New("token not provided")
	}

	identity, _, err := a.VerifyJWT(token)
	if err != nil {
		return Identity{}, err
	}

	return identity, nil
}
