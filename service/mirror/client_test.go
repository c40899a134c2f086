package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/0.0.1234", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"account": "0.0.1234",
			"balance": {
				"balance": 150000000,
				"tokens": [
					{"token_id": "0.0.456858", "balance": 2500},
					{"token_id": "0.0.999999", "balance": 1}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)
	bal, err := c.Balance(context.Background(), "0.0.1234")
	require.NoError(t, err)
	assert.Equal(t, int64(150_000_000), bal.Tinybar)
	assert.Equal(t, int64(2500), bal.Tokens["0.0.456858"])
	assert.Len(t, bal.Tokens, 2)
}

func TestBalance_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"_status": {"messages": [{"message": "Not found"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)
	_, err := c.Balance(context.Background(), "0.0.404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not found")
}

func TestBalance_OpaqueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)
	_, err := c.Balance(context.Background(), "0.0.1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/network/exchangerate", r.URL.Path)
		w.Write([]byte(`{
			"current_rate": {
				"cent_equivalent": 580,
				"hbar_equivalent": 100,
				"expiration_time": 1735689600
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)
	rate, err := c.Rate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.058, rate.USDPerHBAR, 1e-9)
	assert.Equal(t, int64(1735689600), rate.ExpiresAt.Unix())
}

func TestRate_ZeroHbarEquivalent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current_rate": {"cent_equivalent": 580, "hbar_equivalent": 0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)
	_, err := c.Rate(context.Background())
	assert.Error(t, err)
}
