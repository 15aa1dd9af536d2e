package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hospital_portal/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"u-1","email":"house@example.com","fullName":"Gregory House","role":"doctor","isActive":true}}]}}`)
	case strings.Contains(r.URL.Path, "/_doc/"):
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"}}`)
	}
}

func newDirectory(t *testing.T) (*Directory, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewDirectory(client, "users"), fake
}

func TestDirectory_IndexUser(t *testing.T) {
	d, fake := newDirectory(t)
	u := &models.User{ID: uuid.New(), Email: "house@example.com", FirstName: "Gregory", LastName: "House", Role: models.RoleDoctor, IsActive: true}

	require.NoError(t, d.IndexUser(context.Background(), u))

	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodPut+" /users/_doc/"+u.ID.String(), fake.requests[0])

	var doc UserDoc
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &doc))
	assert.Equal(t, "Gregory House", doc.FullName)
	assert.Equal(t, "doctor", doc.Role)
}

func TestDirectory_Search(t *testing.T) {
	d, fake := newDirectory(t)

	total, users, err := d.Search(context.Background(), "house", "doctor", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "house@example.com", users[0].Email)

	require.Len(t, fake.bodies, 1)
	assert.Contains(t, fake.bodies[0], `"multi_match"`)
	assert.Contains(t, fake.bodies[0], `"term":{"role":"doctor"}`)
}
