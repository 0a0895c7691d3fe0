package apiclient

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-edu-portal/identity"
	"golang.org/x/oauth2"
)

// TokenSource exposes the stored session as an oauth2.TokenSource. Token returns the stored
// access token while it is unexpired, refreshes it through the client once it has
// expired, and returns session.ErrNoSession when nobody is signed in.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.client

	sess, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	id, err := identity.Decode(sess.AccessToken)
	if err != nil {
		return nil, err
	}

	if id.Expired(c.nowFunc()) {
		access, err := c.refresher.Refresh(ts.ctx, sess.AccessToken)
		if err != nil {
			return nil, err
		}
		if id, err = identity.Decode(access); err != nil {
			return nil, err
		}
		if id.Expired(c.nowFunc()) {
			return nil, fmt.Errorf("apiclient: refreshed access token is already expired")
		}
		sess.AccessToken = access
		sess.RefreshToken = c.store.RefreshToken()
	}

	return &oauth2.Token{
		AccessToken:  sess.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: sess.RefreshToken,
		Expiry:       id.ExpiresAt,
	}, nil
}
