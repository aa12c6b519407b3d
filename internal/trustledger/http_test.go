package trustledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type HTTPClientSuite struct {
	suite.Suite
}

func TestHTTPClientSuite(t *testing.T) {
	suite.Run(t, new(HTTPClientSuite))
}

func (s *HTTPClientSuite) record() Record {
	return Record{
		Donor:         "Asha",
		Recipient:     "Ravi",
		Organ:         "Kidney",
		Status:        "Matched",
		Compatibility: "92%",
		Timestamp:     "2026-03-14T09:00:00Z",
	}
}

func (s *HTTPClientSuite) TestAppend() {
	s.Run("confirmed append returns the tx ref", func() {
		var got Record
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal(http.MethodPost, r.Method)
			s.Equal("/records", r.URL.Path)
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "txRef": "tx-000042"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		txRef, err := client.Append(context.Background(), s.record())
		s.Require().NoError(err)
		s.Equal("tx-000042", txRef)
		s.Equal("Asha", got.Donor)
		s.Equal("92%", got.Compatibility)
	})

	s.Run("server error is a retryable network failure", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		_, err := client.Append(context.Background(), s.record())
		s.Require().Error(err)
		s.Equal(CategoryNetwork, CategoryOf(err))
		s.True(IsRetryable(err))
	})

	s.Run("rejection is definitive, not retryable", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		_, err := client.Append(context.Background(), s.record())
		s.Require().Error(err)
		s.Equal(CategoryRejected, CategoryOf(err))
		s.False(IsRetryable(err))
	})

	s.Run("slow confirmation maps to confirmation timeout", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "txRef": "tx-000001"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := client.Append(ctx, s.record())
		s.Require().Error(err)
		s.Equal(CategoryConfirmationTimeout, CategoryOf(err))
		s.True(IsRetryable(err))
	})

	s.Run("breaker opens after repeated failures and rejects locally", func() {
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		for i := 0; i < 5; i++ {
			_, err := client.Append(context.Background(), s.record())
			s.Require().Error(err)
		}
		s.Equal(5, hits)

		_, err := client.Append(context.Background(), s.record())
		s.Require().Error(err)
		s.Equal(CategoryNetwork, CategoryOf(err))
		s.Equal(5, hits, "open breaker must not reach the service")
	})
}

func (s *HTTPClientSuite) TestListAll() {
	s.Run("returns the full ledger in service order", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal(http.MethodGet, r.Method)
			s.Equal("/records", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"records": []Record{
					{Donor: "Asha", Organ: "Kidney"},
					{Donor: "Binod", Organ: "Liver"},
				},
			})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		records, err := client.ListAll(context.Background())
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal("Asha", records[0].Donor)
		s.Equal("Binod", records[1].Donor)
	})

	s.Run("unreachable service is a network error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		_, err := client.ListAll(context.Background())
		s.Require().Error(err)
		s.Equal(CategoryNetwork, CategoryOf(err))
	})

	s.Run("error envelope maps to rejection", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "ledger corrupted"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		_, err := client.ListAll(context.Background())
		s.Require().Error(err)
		s.Equal(CategoryRejected, CategoryOf(err))
		s.Contains(err.Error(), "ledger corrupted")
	})
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	b := newBreaker()
	b.cooldown = 10 * time.Millisecond

	for i := 0; i < b.failureThreshold; i++ {
		b.RecordFailure()
	}
	if !b.IsOpen() {
		t.Fatal("breaker should be open after consecutive failures")
	}

	time.Sleep(15 * time.Millisecond)
	if b.IsOpen() {
		t.Fatal("breaker should half-open after the cooldown")
	}

	b.RecordSuccess()
	b.RecordSuccess()
	if b.IsOpen() {
		t.Fatal("breaker should close after consecutive successes")
	}
}
