package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"example.com/backstage/services/erpgateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElastic struct {
	mu       sync.Mutex
	bulk     [][]byte
	search   []byte
	response string
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/":
		_, _ = w.Write([]byte(`{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`))
	case "/_bulk":
		scanner := bufio.NewScanner(bytes.NewReader(body))
		for scanner.Scan() {
			f.bulk = append(f.bulk, append([]byte(nil), scanner.Bytes()...))
		}
		_, _ = w.Write([]byte(f.response))
	case "/erp-items/_search":
		f.search = body
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"item_code":"A1","item_name":"Apples","group_code":100,"frozen":false,"organic":true}}]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeElastic) *ElasticClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewElasticClient(config.ElasticConfig{URL: srv.URL, Prefix: "erp", Index: "items"})
	require.NoError(t, err)
	return client
}

func TestIndexItemsSendsBulkBody(t *testing.T) {
	fake := &fakeElastic{response: `{"errors":false,"items":[{"index":{"_id":"A1","status":201}},{"index":{"_id":"A2","status":200}}]}`}
	client := newTestClient(t, fake)

	group := 100
	err := client.IndexItems(context.Background(), []ItemDocument{
		{ItemCode: "A1", ItemName: "Apples", GroupCode: &group},
		{ItemCode: "A2", ItemName: "Pears"},
	})
	require.NoError(t, err)

	require.Len(t, fake.bulk, 4)
	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal(fake.bulk[0], &meta))
	assert.Equal(t, "erp-items", meta["index"]["_index"])
	assert.Equal(t, "A1", meta["index"]["_id"])

	var doc ItemDocument
	require.NoError(t, json.Unmarshal(fake.bulk[1], &doc))
	assert.Equal(t, 100, *doc.GroupCode)
}

func TestIndexItemsReportsItemFailures(t *testing.T) {
	fake := &fakeElastic{response: `{"errors":true,"items":[{"index":{"_id":"A1","status":201}},{"index":{"_id":"A2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}]}`}
	client := newTestClient(t, fake)

	err := client.IndexItems(context.Background(), []ItemDocument{{ItemCode: "A1"}, {ItemCode: "A2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestIndexItemsEmptyIsNoop(t *testing.T) {
	fake := &fakeElastic{}
	client := newTestClient(t, fake)

	require.NoError(t, client.IndexItems(context.Background(), nil))
	assert.Empty(t, fake.bulk)
}

func TestSearchItems(t *testing.T) {
	fake := &fakeElastic{}
	client := newTestClient(t, fake)

	docs, err := client.SearchItems(context.Background(), "apple", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A1", docs[0].ItemCode)
	assert.True(t, docs[0].Organic)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.search, &sent))
	assert.Equal(t, float64(5), sent["size"])
}
