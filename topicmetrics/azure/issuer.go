package azure

import (
	"context"
	"errors"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Issuer issues fresh bearer tokens.
type Issuer interface {
	Issue(context.Context) (string, error)
}

// ClientCredentialsIssuer issues tokens with the OAuth2 client credentials
// grant against the Azure AD v1 token endpoint.
type ClientCredentialsIssuer struct {
	cfg  *clientcredentials.Config
	conf Config
}

// NewClientCredentialsIssuer returns a *ClientCredentialsIssuer.
func NewClientCredentialsIssuer(c Config) (*ClientCredentialsIssuer, error) {
	c = c.withDefaults()

	switch {
	case c.TenantID == "":
		return nil, errors.New("tenant ID must be set")
	case c.ClientID == "":
		return nil, errors.New("client ID must be set")
	case c.ClientSecret == "":
		return nil, errors.New("client secret must be set")
	}

	return &ClientCredentialsIssuer{
		cfg: &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     c.TokenURL(),
			EndpointParams: url.Values{
				"resource": {c.Resource},
			},
			// Azure AD v1 expects the credentials in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
		conf: c,
	}, nil
}

// Issue requests a new access token. Responses that aren't valid token
// JSON or lack an access_token are returned as errors.
func (i *ClientCredentialsIssuer) Issue(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, i.conf.HTTPClient)

	tok, err := i.cfg.Token(ctx)
	if err != nil {
		return "", &TokenError{Request: i.cfg.TokenURL, Err: err}
	}

	if tok.AccessToken == "" {
		return "", &TokenError{Request: i.cfg.TokenURL, Err: errors.New("response missing access_token")}
	}

	return tok.AccessToken, nil
}
