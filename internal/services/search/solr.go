// Package search provides the document retrieval client backed by Apache
// Solr. Zero hits is a valid result; only transport and protocol failures
// surface as errors so the caller's breaker counts real outages.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ragchat-api-go/internal/config"
	"github.com/sirupsen/logrus"
)

// Document is one indexed document returned by a search.
type Document struct {
	ID           string
	Title        string
	Content      string
	TextPassages []string
}

// Result holds the documents matched by a query.
type Result struct {
	Documents []Document
	NumFound  int
}

// Service represents the document retrieval interface
type Service interface {
	Search(ctx context.Context, query string, scope []string, limit int) (*Result, error)
	Delete(ctx context.Context, documentID string) error
	Health(ctx context.Context) error
}

// Client is the Solr-backed implementation.
type Client struct {
	config     *config.SolrConfig
	baseURL    string
	core       string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Solr search client
func NewClient(cfg *config.SolrConfig, logger *logrus.Logger) *Client {
	core := cfg.Core
	if core == "" {
		core = "mycore"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		core:    core,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// buildQuery turns free text into a Solr query string. Terms of one or two
// characters are dropped; the rest are quoted and OR-joined. A query with no
// usable terms matches everything.
func buildQuery(query string) string {
	terms := make([]string, 0, 8)
	for _, term := range strings.Fields(query) {
		if len(term) > 2 {
			terms = append(terms, `"`+term+`"`)
		}
	}
	if len(terms) == 0 {
		return "*:*"
	}
	return strings.Join(terms, " OR ")
}

// flexString tolerates Solr fields that are either a string or an array of
// strings depending on the field type.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = flexString(single)
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return err
	}
	if len(multi) > 0 {
		*f = flexString(multi[0])
	}
	return nil
}

type solrDoc struct {
	ID      string     `json:"id"`
	Title   flexString `json:"title"`
	Content flexString `json:"content"`
	Text    []string   `json:"_text_"`
}

type selectResponse struct {
	Response struct {
		NumFound int       `json:"numFound"`
		Docs     []solrDoc `json:"docs"`
	} `json:"response"`
}

// Search queries the index, optionally restricted to a set of document IDs.
func (c *Client) Search(ctx context.Context, query string, scope []string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("q", buildQuery(query))
	params.Set("rows", strconv.Itoa(limit))
	params.Set("fl", "id,title,content,_text_")
	params.Set("wt", "json")

	if len(scope) > 0 {
		filters := make([]string, 0, len(scope))
		for _, id := range scope {
			filters = append(filters, fmt.Sprintf("id:%q", id))
		}
		params.Set("fq", strings.Join(filters, " OR "))
	}

	reqURL := fmt.Sprintf("%s/solr/%s/select?%s", c.baseURL, c.core, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"query": query,
		"scope": len(scope),
		"limit": limit,
	}).Debug("Searching documents")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed selectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	documents := make([]Document, 0, len(parsed.Response.Docs))
	for _, doc := range parsed.Response.Docs {
		documents = append(documents, Document{
			ID:           doc.ID,
			Title:        string(doc.Title),
			Content:      string(doc.Content),
			TextPassages: doc.Text,
		})
	}

	return &Result{
		Documents: documents,
		NumFound:  parsed.Response.NumFound,
	}, nil
}

// Delete removes a document from the index and commits.
func (c *Client) Delete(ctx context.Context, documentID string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"delete": map[string]string{"id": documentID},
	})
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/solr/%s/update?commit=true", c.baseURL, c.core)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete failed with status %d", resp.StatusCode)
	}

	c.logger.WithField("documentID", documentID).Info("Document deleted from index")
	return nil
}

// Health pings the core.
func (c *Client) Health(ctx context.Context) error {
	timeout := c.config.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/solr/%s/admin/ping", c.baseURL, c.core)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solr health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solr health check returned status %d", resp.StatusCode)
	}
	return nil
}
