// Package archive provides the OpenSearch index over archived messages.
package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/tramita-io/tramita/internal/models"
)

// Config holds OpenSearch connection settings.
type Config struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Index    string
}

// OpenSearchIndex stores archived messages in OpenSearch for full-text search.
type OpenSearchIndex struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchIndex creates an OpenSearch index client and verifies the
// connection.
func NewOpenSearchIndex(cfg Config) (*OpenSearchIndex, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	index := cfg.Index
	if index == "" {
		index = "tramita-archive"
	}

	return &OpenSearchIndex{
		client: client,
		index:  index,
	}, nil
}

// IndexArchived writes one archived message document, keyed by archive ID.
func (s *OpenSearchIndex) IndexArchived(ctx context.Context, msg *models.ArchivedMessage) error {
	bodyBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal archived message: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(bodyBytes),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(msg.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index archived message: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch error: %s - %s", res.Status(), string(body))
	}
	return nil
}

// Search runs a full-text query over archived message titles and content.
func (s *OpenSearchIndex) Search(ctx context.Context, query string, page, limit int) ([]models.ArchivedMessage, int, error) {
	from := (page - 1) * limit
	if from < 0 {
		from = 0
	}

	searchBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content", "process_title"},
			},
		},
		"from": from,
		"size": limit,
		"sort": []map[string]interface{}{
			{"archived_at": map[string]string{"order": "desc"}},
		},
	}

	bodyBytes, err := json.Marshal(searchBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(bodyBytes)),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search archive: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("opensearch error: %s - %s", res.Status(), string(body))
	}

	var searchResult struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]models.ArchivedMessage, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		var msg models.ArchivedMessage
		if err := json.Unmarshal(hit.Source, &msg); err != nil {
			// Skip malformed documents
			continue
		}
		if msg.ID == "" {
			msg.ID = hit.ID
		}
		results = append(results, msg)
	}

	return results, searchResult.Hits.Total.Value, nil
}

// Close closes the OpenSearch client connection.
func (s *OpenSearchIndex) Close() error {
	// OpenSearch client doesn't have explicit close
	return nil
}
