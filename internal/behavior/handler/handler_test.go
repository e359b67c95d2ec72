package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vigil/internal/behavior/handler/mocks"
	"vigil/internal/behavior/models"
	"vigil/internal/platform/middleware"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/testutil"
)

// =============================================================================
// Behavior Handler Test Suite
// =============================================================================
// Justification for unit tests: The handler owns request decoding, identity
// parsing at the trust boundary, status code mapping (200/400/404/429/5xx),
// and the admin guard on operational endpoints. The engine is mocked so every
// branch is reachable.

// stubValidator accepts two fixed tokens.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.AdminClaims, error) {
	switch token {
	case "admin-token":
		return &middleware.AdminClaims{Subject: "ops-1", Role: "admin"}, nil
	case "user-token":
		return &middleware.AdminClaims{Subject: "user-1", Role: "user"}, nil
	default:
		return nil, fmt.Errorf("invalid token")
	}
}

type HandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *HandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockEngine := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockEngine, logger, stubValidator{})
	r := chi.NewRouter()
	h.Register(r)
	return r, mockEngine
}

// =============================================================================
// Action Admission Tests
// =============================================================================

func (s *HandlerSuite) TestHandleAction() {
	s.Run("allowed action returns the decision", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Admit(gomock.Any(), id.Identity("user-1"), "messaging", map[string]string{"platform": "macos"}).
			Return(&models.Decision{
				Allowed:   true,
				Quota:     60,
				Remaining: 42,
				Anomaly:   models.AnomalyResult{Score: 0.3, Reasons: []string{"fingerprint mismatch"}},
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/actions", models.RecordActionRequest{
			Identity:   "user-1",
			Category:   "messaging",
			Attributes: map[string]string{"platform": "macos"},
		})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.DecisionResponse](s.T(), rr)
		s.True(resp.Allowed)
		s.Equal(60, resp.Quota)
		s.Equal(42, resp.Remaining)
		s.Equal(0.3, resp.Anomaly.Score)
	})

	s.Run("throttled action returns 429 with retry hint", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Admit(gomock.Any(), id.Identity("flooder"), "messaging", gomock.Nil()).
			Return(&models.Decision{
				Allowed: false,
				Quota:   6,
				Anomaly: models.AnomalyResult{Score: 0.9, Anomalous: true},
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/actions", models.RecordActionRequest{
			Identity: "flooder",
			Category: "messaging",
		})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
		resp := testutil.UnmarshalResponse[models.ThrottledResponse](s.T(), rr)
		s.Equal("rate_limit_exceeded", resp.Error)
		s.Equal(6, resp.Quota)
		s.Equal(60, resp.RetryAfter)
		s.True(resp.Anomaly.Anomalous)
	})

	s.Run("malformed body returns bad request", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/actions", "{not json")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("invalid identity returns invalid input", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/actions", models.RecordActionRequest{
			Identity: "has space",
			Category: "messaging",
		})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("engine invalid-input errors pass through as 400", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Admit(gomock.Any(), id.Identity("user-1"), "", gomock.Nil()).
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "identity and category are required"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/actions", models.RecordActionRequest{
			Identity: "user-1",
		})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("engine failures surface as opaque 500", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Admit(gomock.Any(), id.Identity("user-1"), "messaging", gomock.Nil()).
			Return(nil, errors.New("store exploded"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/actions", models.RecordActionRequest{
			Identity: "user-1",
			Category: "messaging",
		})
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
		// Infrastructure details never leak to clients.
		s.NotContains(rr.Body.String(), "store exploded")
	})
}

// =============================================================================
// Admin Guard Tests
// =============================================================================

func (s *HandlerSuite) TestAdminGuard() {
	s.Run("missing token returns 401", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identities/user-1/baseline")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("invalid token returns 401", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identities/user-1/baseline")
		req.Header.Set("Authorization", "Bearer garbage")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("non-admin role returns 403", func() {
		router, _ := newTestRouter(s.T())
		req := testutil.NewRequest(s.T(), http.MethodPost, "/v1/identities/user-1/reset")
		req.Header.Set("Authorization", "Bearer user-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

// =============================================================================
// Baseline Export Tests
// =============================================================================

func (s *HandlerSuite) TestHandleBaseline() {
	s.Run("existing baseline is returned", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Baseline(gomock.Any(), id.Identity("user-1")).
			Return(&models.Baseline{
				AvgActionsPerMinute: 2,
				AvgActionsPerHour:   30,
				CommonCategories:    []string{"messaging"},
				TypicalActiveHours:  []int{9, 10},
				Fingerprint:         "fp-1",
				ComputedAt:          time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
				SampleSize:          200,
			}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identities/user-1/baseline")
		req.Header.Set("Authorization", "Bearer admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.Baseline](s.T(), rr)
		s.Equal([]string{"messaging"}, resp.CommonCategories)
		s.Equal(200, resp.SampleSize)
	})

	s.Run("absent baseline returns 404", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			Baseline(gomock.Any(), id.Identity("stranger")).
			Return(nil, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identities/stranger/baseline")
		req.Header.Set("Authorization", "Bearer admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

// =============================================================================
// Identity Reset Tests
// =============================================================================

func (s *HandlerSuite) TestHandleReset() {
	s.Run("successful reset returns 204", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			ResetIdentity(gomock.Any(), id.Identity("user-1")).
			Return(nil)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/v1/identities/user-1/reset")
		req.Header.Set("Authorization", "Bearer admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("reset failure returns 500", func() {
		router, mockEngine := newTestRouter(s.T())
		mockEngine.EXPECT().
			ResetIdentity(gomock.Any(), id.Identity("user-1")).
			Return(errors.New("backend down"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/v1/identities/user-1/reset")
		req.Header.Set("Authorization", "Bearer admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	})
}

// =============================================================================
// Stats Tests
// =============================================================================

func (s *HandlerSuite) TestHandleStats() {
	router, mockEngine := newTestRouter(s.T())
	mockEngine.EXPECT().
		Snapshot(gomock.Any()).
		Return(&models.Stats{
			TrackedIdentities:  12,
			FlaggedIdentities:  2,
			AverageScore:       0.25,
			ActiveQuotaEntries: 18,
		}, nil)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/stats")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[models.Stats](s.T(), rr)
	s.Equal(12, resp.TrackedIdentities)
	s.Equal(2, resp.FlaggedIdentities)
	s.Equal(0.25, resp.AverageScore)
}
