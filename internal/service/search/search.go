package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/hospital_portal/internal/models"
)

type UserDoc struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Location string `json:"location,omitempty"`
	IsActive bool   `json:"isActive"`
}

func docFromUser(u *models.User) UserDoc {
	return UserDoc{
		ID:       u.ID.String(),
		Email:    u.Email,
		FullName: u.FullName(),
		Role:     string(u.Role),
		Location: u.Location,
		IsActive: u.IsActive,
	}
}

type Directory struct {
	ES    *elasticsearch.Client
	Index string
}

func NewDirectory(es *elasticsearch.Client, index string) *Directory {
	return &Directory{ES: es, Index: index}
}

func (d *Directory) IndexUser(ctx context.Context, u *models.User) error {
	body, err := json.Marshal(docFromUser(u))
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}

	res, err := d.ES.Index(d.Index, bytes.NewReader(body),
		d.ES.Index.WithContext(ctx),
		d.ES.Index.WithDocumentID(u.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index user: %s: %s", res.Status(), msg)
	}
	return nil
}

func (d *Directory) Search(ctx context.Context, query, role string, from, size int) (int64, []UserDoc, error) {
	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"fullName^2", "email", "location"},
				"fuzziness": "AUTO",
			},
		},
	}
	if role != "" {
		boolQuery["filter"] = map[string]any{"term": map[string]any{"role": role}}
	}
	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  from,
		"size":  size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}

	res, err := d.ES.Search(
		d.ES.Search.WithContext(ctx),
		d.ES.Search.WithIndex(d.Index),
		d.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search users: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source UserDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	users := make([]UserDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		users[i] = hit.Source
	}
	return r.Hits.Total.Value, users, nil
}
