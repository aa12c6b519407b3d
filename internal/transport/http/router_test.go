package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"organlink/internal/audit"
	"organlink/internal/domain"
	"organlink/internal/ledger"
	"organlink/internal/match"
	"organlink/internal/match/lock"
	"organlink/internal/party"
	"organlink/internal/store"
	"organlink/internal/trustledger"
)

type RouterSuite struct {
	suite.Suite
	stores *store.Stores
	trust  *trustledger.MemoryLedger
	srv    *httptest.Server
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.stores = store.NewMemoryStores()
	s.trust = trustledger.NewMemoryLedger()
	log := slog.New(slog.DiscardHandler)

	matchSvc := match.NewService(
		s.stores, s.trust, match.FixedScorer(90), lock.NewMemory(),
		audit.NewMemorySink(), nil, log,
	)
	handler := NewHandler(log,
		matchSvc,
		ledger.NewService(s.stores, s.trust, log),
		party.NewService(s.stores),
	)
	s.srv = httptest.NewServer(NewRouter(handler))
}

func (s *RouterSuite) TearDownTest() {
	s.srv.Close()
}

func (s *RouterSuite) post(path string, body any) (*http.Response, map[string]any) {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.srv.URL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	return resp, decode(s, resp)
}

func (s *RouterSuite) get(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(s.srv.URL + path)
	s.Require().NoError(err)
	return resp, decode(s, resp)
}

func decode(s *RouterSuite, resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (s *RouterSuite) registerDonor() string {
	resp, body := s.post("/api/donors", map[string]any{
		"fullName":      "Asha Patil",
		"age":           34,
		"gender":        "F",
		"bloodGroup":    "O+",
		"organType":     "Kidney",
		"city":          "Pune",
		"state":         "MH",
		"contactNumber": "9876543210",
		"email":         "asha@example.com",
		"consent":       true,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	donor := body["donor"].(map[string]any)
	return donor["_id"].(string)
}

func (s *RouterSuite) registerRecipient() string {
	resp, body := s.post("/api/recipients", map[string]any{
		"name":       "Ravi Kumar",
		"email":      "ravi@example.com",
		"organ":      "Kidney",
		"bloodGroup": "O+",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	recipient := body["recipient"].(map[string]any)
	return recipient["_id"].(string)
}

func (s *RouterSuite) TestHealth() {
	resp, body := s.get("/api/health")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["ok"])
}

func (s *RouterSuite) TestRegisterDonor() {
	s.Run("valid donor is created", func() {
		id := s.registerDonor()
		s.NotEmpty(id)
	})

	s.Run("validation failure names the missing fields", func() {
		resp, body := s.post("/api/donors", map[string]any{"fullName": "Asha"})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		s.Equal(false, body["ok"])
		s.Contains(body["error"], "missing fields")
		s.Contains(body["error"], "consent")
	})

	s.Run("non-json content type is rejected", func() {
		resp, err := http.Post(s.srv.URL+"/api/donors", "text/plain", bytes.NewReader([]byte("x")))
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	s.Run("malformed body is a bad request", func() {
		resp, err := http.Post(s.srv.URL+"/api/donors", "application/json", bytes.NewReader([]byte("{")))
		s.Require().NoError(err)
		body := decode(s, resp)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		s.Equal(false, body["ok"])
	})
}

func (s *RouterSuite) TestMatchRun() {
	s.registerDonor()
	s.registerRecipient()

	s.Run("run commits the compatible pair", func() {
		resp, body := s.post("/api/match/run", map[string]any{})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(true, body["ok"])
		matches := body["matches"].([]any)
		s.Require().Len(matches, 1)
		first := matches[0].(map[string]any)
		s.Equal("Asha Patil", first["donor"])
		s.Equal("Ravi Kumar", first["recipient"])
		s.Equal("90%", first["compatibility"])
		s.Equal(true, first["mirrored"])
	})

	s.Run("second run reports no candidates", func() {
		resp, body := s.post("/api/match/run", map[string]any{})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(body["message"], "no unmatched")
		s.Empty(body["matches"].([]any))
	})

	s.Run("matches listing resolves party names", func() {
		resp, body := s.get("/api/matches")
		s.Equal(http.StatusOK, resp.StatusCode)
		matches := body["matches"].([]any)
		s.Require().Len(matches, 1)
		first := matches[0].(map[string]any)
		s.Equal("Asha Patil", first["donorName"])
		s.Equal(string(domain.SourceAutomatic), first["source"])
	})

	s.Run("ledger listing carries the block id", func() {
		resp, body := s.get("/api/ledger")
		s.Equal(http.StatusOK, resp.StatusCode)
		records := body["ledgers"].([]any)
		s.Require().Len(records, 1)
		first := records[0].(map[string]any)
		s.Contains(first["blockId"], "blk-")
		s.Equal("Asha Patil", first["donorName"])
	})

	s.Run("external ledger assigns sequential blocks", func() {
		resp, body := s.get("/api/ledger/external")
		s.Equal(http.StatusOK, resp.StatusCode)
		records := body["records"].([]any)
		s.Require().Len(records, 1)
		first := records[0].(map[string]any)
		s.Equal(float64(1), first["block"])
		s.Equal("Asha Patil", first["donor"])
	})
}

func (s *RouterSuite) TestManualMatch() {
	donorID := s.registerDonor()
	recipientID := s.registerRecipient()

	s.Run("valid manual match is recorded with the manual source", func() {
		resp, body := s.post("/api/matches", map[string]any{
			"donorId":       donorID,
			"recipientId":   recipientID,
			"organ":         "Kidney",
			"compatibility": 88,
			"status":        "Matched",
		})
		s.Equal(http.StatusCreated, resp.StatusCode)
		created := body["match"].(map[string]any)
		s.Equal("88%", created["compatibility"])
		s.Equal(string(domain.SourceManual), created["source"])
	})

	s.Run("unknown donor is not found", func() {
		resp, body := s.post("/api/matches", map[string]any{
			"donorId":       "00000000-0000-0000-0000-000000000000",
			"recipientId":   recipientID,
			"organ":         "Kidney",
			"compatibility": 88,
			"status":        "Matched",
		})
		s.Equal(http.StatusNotFound, resp.StatusCode)
		s.Equal(false, body["ok"])
	})
}

func (s *RouterSuite) TestContactDonor() {
	donorID := s.registerDonor()

	s.Run("returns the donor contact card", func() {
		resp, body := s.post("/api/contact-donor", map[string]any{"donorId": donorID})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("Asha Patil", body["donorName"])
		s.Equal("9876543210", body["contactNumber"])
	})

	s.Run("malformed id is a bad request", func() {
		resp, body := s.post("/api/contact-donor", map[string]any{"donorId": "nope"})
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		s.Equal(false, body["ok"])
	})
}

func (s *RouterSuite) TestDebugEndpoints() {
	donorID := s.registerDonor()
	s.registerRecipient()

	resp, _ := s.post("/api/match/run", map[string]any{})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	s.Run("reset_match_flags unconsumes everyone", func() {
		resp, body := s.post("/api/debug/reset_match_flags", map[string]any{})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(true, body["ok"])

		donor, err := s.stores.Donors.FindByID(context.Background(), donorID)
		s.Require().NoError(err)
		s.False(donor.Consumed)
	})

	s.Run("clear_all wipes every collection", func() {
		resp, body := s.post("/api/debug/clear_all", map[string]any{})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(true, body["ok"])

		_, listBody := s.get("/api/donors")
		s.Empty(listBody["donors"].([]any))
		_, ledgerBody := s.get("/api/ledger")
		s.Empty(ledgerBody["ledgers"].([]any))
	})
}
