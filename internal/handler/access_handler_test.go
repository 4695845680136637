package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"geogate/internal/model"
	"geogate/internal/service"
)

type mockAccessService struct {
	decideFunc   func(ctx context.Context, ip string) (*model.AccessDecision, error)
	asnAvailable bool
	lastIP       string
}

func (m *mockAccessService) Decide(ctx context.Context, ip string) (*model.AccessDecision, error) {
	m.lastIP = ip
	return m.decideFunc(ctx, ip)
}

func (m *mockAccessService) ASNAvailable() bool {
	return m.asnAvailable
}

func strPtr(s string) *string { return &s }

func TestHandler_CheckIP(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		mockResponse *model.AccessDecision
		mockError    error
		expectedCode int
		expectedBody map[string]interface{}
	}{
		{
			name: "allowed",
			path: "/api/v1/check/49.36.10.1",
			mockResponse: &model.AccessDecision{
				IP:             "49.36.10.1",
				Allowed:        true,
				Country:        "IN",
				Classification: &model.Verdict{Confidence: model.ConfidenceLow, Reasons: []string{"ASN data unavailable"}},
			},
			expectedCode: 200,
			expectedBody: map[string]interface{}{
				"ip":           "49.36.10.1",
				"allowed":      true,
				"block_reason": nil,
				"country":      "IN",
			},
		},
		{
			name: "blocked",
			path: "/api/v1/check/128.199.1.1",
			mockResponse: &model.AccessDecision{
				IP:          "128.199.1.1",
				Allowed:     false,
				BlockReason: strPtr("VPN/Proxy detected"),
				Country:     "MY",
			},
			expectedCode: 200,
			expectedBody: map[string]interface{}{
				"allowed":      false,
				"block_reason": "VPN/Proxy detected",
			},
		},
		{
			name:         "invalid ip",
			path:         "/api/v1/check/invalid",
			mockError:    fmt.Errorf("%w: invalid", service.ErrInvalidIP),
			expectedCode: 400,
			expectedBody: map[string]interface{}{
				"message": "Invalid IP address format: invalid",
			},
		},
		{
			name:         "lookup failure",
			path:         "/api/v1/check/8.8.8.8",
			mockError:    fmt.Errorf("geo lookup: corrupt search tree"),
			expectedCode: 500,
			expectedBody: map[string]interface{}{
				"message": "Failed to evaluate IP address",
			},
		},
	}

	logger, _ := zap.NewDevelopment()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockAccessService{
				decideFunc: func(ctx context.Context, ip string) (*model.AccessDecision, error) {
					return tt.mockResponse, tt.mockError
				},
			}

			h := NewHandler(mockService, logger)
			app := fiber.New()
			h.RegisterRoutes(app)

			req := httptest.NewRequest("GET", tt.path, nil)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}

			if resp.StatusCode != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, resp.StatusCode)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}

			for k, want := range tt.expectedBody {
				got, ok := body[k]
				if !ok || got != want {
					t.Errorf("expected %s=%v, got %v", k, want, got)
				}
			}
		})
	}
}

func TestHandler_CheckClient(t *testing.T) {
	tests := []struct {
		name           string
		proxyHeader    string
		trustedProxies []string
		forwardedFor   string
		expectedIP     string
	}{
		{
			name:           "trusted proxy",
			proxyHeader:    fiber.HeaderXForwardedFor,
			trustedProxies: []string{"0.0.0.0/0"},
			forwardedFor:   "::ffff:49.36.10.1, 10.0.0.1",
			expectedIP:     "49.36.10.1",
		},
		{
			name:           "untrusted peer",
			proxyHeader:    fiber.HeaderXForwardedFor,
			trustedProxies: []string{"10.0.0.0/8"},
			forwardedFor:   "203.0.113.7",
			expectedIP:     "0.0.0.0",
		},
		{
			name:         "no proxy header configured",
			forwardedFor: "203.0.113.7",
			expectedIP:   "0.0.0.0",
		},
	}

	logger := zap.NewNop()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockAccessService{
				decideFunc: func(ctx context.Context, ip string) (*model.AccessDecision, error) {
					return &model.AccessDecision{IP: ip, Allowed: true}, nil
				},
			}

			app := NewApp(tt.proxyHeader, tt.trustedProxies, logger)
			NewHandler(mockService, logger).RegisterRoutes(app)

			req := httptest.NewRequest("GET", "/api/v1/check", nil)
			req.Header.Set(fiber.HeaderXForwardedFor, tt.forwardedFor)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}

			if resp.StatusCode != 200 {
				t.Errorf("expected status code 200, got %d", resp.StatusCode)
			}
			if mockService.lastIP != tt.expectedIP {
				t.Errorf("expected client address %s, got %q", tt.expectedIP, mockService.lastIP)
			}
		})
	}
}

func TestHandler_HealthCheck(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	h := NewHandler(&mockAccessService{asnAvailable: true}, logger)

	app := fiber.New()
	h.RegisterRoutes(app)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("expected status code 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	if body["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", body["status"])
	}
	if body["asn_lookup"] != true {
		t.Errorf("expected asn_lookup true, got %v", body["asn_lookup"])
	}
}
