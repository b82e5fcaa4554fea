package factcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/satyashodhak/factcheck-api/src/webclient"
)

// Client queries the Google Fact Check Tools claim search API for prior
// human fact-checks of a statement.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Publisher struct {
	Name string `json:"name"`
	Site string `json:"site"`
}

type ClaimReview struct {
	Publisher     Publisher `json:"publisher"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	ReviewDate    string    `json:"reviewDate"`
	TextualRating string    `json:"textualRating"`
}

type Claim struct {
	Text        string        `json:"text"`
	Claimant    string        `json:"claimant"`
	ClaimDate   string        `json:"claimDate"`
	ClaimReview []ClaimReview `json:"claimReview"`
}

type searchResponse struct {
	Claims []Claim `json:"claims"`
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://factchecktools.googleapis.com/v1alpha1"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  webclient.NewDefault(15 * time.Second),
	}
}

// Search returns prior fact-checks matching the query. Callers treat every
// failure as "no results"; the verification pipeline never aborts on it.
func (c *Client) Search(ctx context.Context, query string) ([]Claim, error) {
	endpoint := fmt.Sprintf("%s/claims:search?query=%s&key=%s",
		c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fact check API error: status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result.Claims, nil
}

// Review returns the first claim review, if any. The API nests the useful
// fields (publisher, rating, url) one level down and the list may be empty.
func (cl Claim) Review() (ClaimReview, bool) {
	if len(cl.ClaimReview) == 0 {
		return ClaimReview{}, false
	}
	return cl.ClaimReview[0], true
}
