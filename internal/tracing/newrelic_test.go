package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/backstage/services/erpgateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "ERP Gateway"})
	require.NoError(t, err)

	ctx, txn := tracer.StartTransaction(context.Background(), "list-contracts")
	assert.Nil(t, txn)
	assert.NotNil(t, ctx)

	tracer.RecordError(txn, errors.New("boom"))
	tracer.AddAttribute(txn, "bp_code", "C1")
	tracer.EndTransaction(txn)
	tracer.Close()
}

func TestHTTPClientPassesThroughWithoutTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(5 * time.Second)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestSegmentWithoutTransaction(t *testing.T) {
	seg := Segment(context.Background(), "spread")
	assert.Nil(t, seg)
	seg.End()
}
