package threads

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"golang.org/x/oauth2"
)

const insightMetrics = "views,likes,replies,reposts,quotes,shares"

type Insights struct {
	Views   int64
	Likes   int64
	Replies int64
	Reposts int64
	Quotes  int64
	Shares  int64
}

// GetInsights returns the engagement counters of a published post.
func (c *Client) GetInsights(ctx context.Context, creds Credentials, mediaID string) (*Insights, error) {
	params := url.Values{}
	params.Set("metric", insightMetrics)

	var resp transfer.ThreadsInsightsResponse
	if err := c.do(ctx, creds.Token, "insights", http.MethodGet, "/"+mediaID+"/insights", params, &resp); err != nil {
		return nil, err
	}

	insights := &Insights{}
	for _, m := range resp.Data {
		var value int64
		switch {
		case m.TotalValue != nil:
			value = m.TotalValue.Value
		case len(m.Values) > 0:
			value = m.Values[0].Value
		}

		switch m.Name {
		case "views":
			insights.Views = value
		case "likes":
			insights.Likes = value
		case "replies":
			insights.Replies = value
		case "reposts":
			insights.Reposts = value
		case "quotes":
			insights.Quotes = value
		case "shares":
			insights.Shares = value
		}
	}
	return insights, nil
}

// RefreshToken exchanges a long-lived token for a new one with a fresh expiry.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "th_refresh_token")
	params.Set("access_token", accessToken)

	var resp transfer.ThreadsTokenResponse
	if err := c.do(ctx, nil, "refresh_token", http.MethodGet, "/refresh_access_token", params, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("threads refresh_token: empty access token in response")
	}

	return &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Expiry:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}
