package cloudflare

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cloudflare/cloudflare-go"

	"github.com/magicorntech/epictetus/internal/provider"
)

func TestCheckRetry_RetriesOn5xxAnd429(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		wantRetry  bool
	}{
		{"server error", http.StatusInternalServerError, nil, true},
		{"bad gateway", http.StatusBadGateway, nil, true},
		{"rate limited", http.StatusTooManyRequests, nil, true},
		{"transport error", 0, errors.New("connection reset"), true},
		{"bad request", http.StatusBadRequest, nil, false},
		{"unauthorized", http.StatusUnauthorized, nil, false},
		{"not found", http.StatusNotFound, nil, false},
		{"ok", http.StatusOK, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.statusCode}
			}
			retry, err := checkRetry(context.Background(), resp, tt.err)
			if retry != tt.wantRetry {
				t.Errorf("checkRetry() = %v, want %v", retry, tt.wantRetry)
			}
			if tt.err == nil && err != nil {
				t.Errorf("unexpected error returned: %v", err)
			}
		})
	}
}

func TestCheckRetry_CancelledContextStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := checkRetry(ctx, &http.Response{StatusCode: http.StatusInternalServerError}, nil)
	if retry {
		t.Error("expected no retry once context is cancelled")
	}
	if err == nil {
		t.Error("expected cancellation error")
	}
}

func TestClassify_4xxOtherThan429IsPermanent(t *testing.T) {
	err := &cloudflare.Error{StatusCode: http.StatusBadRequest}
	classified := classify(err)
	if !provider.IsPermanent(classified) {
		t.Errorf("expected permanent error for 400, got %v", classified)
	}
}

func TestClassify_429IsNotPermanent(t *testing.T) {
	err := &cloudflare.Error{StatusCode: http.StatusTooManyRequests}
	classified := classify(err)
	if provider.IsPermanent(classified) {
		t.Errorf("expected 429 to not be classified permanent, got %v", classified)
	}
}

func TestClassify_5xxIsNotPermanent(t *testing.T) {
	err := &cloudflare.Error{StatusCode: http.StatusServiceUnavailable}
	classified := classify(err)
	if provider.IsPermanent(classified) {
		t.Errorf("expected 5xx to not be classified permanent, got %v", classified)
	}
}

func TestClassify_NonCloudflareErrorPassesThroughUnwrapped(t *testing.T) {
	err := errors.New("transport failure")
	classified := classify(err)
	if provider.IsPermanent(classified) {
		t.Error("expected non-cloudflare error to never be classified permanent")
	}
	if classified != err {
		t.Errorf("expected passthrough, got %v", classified)
	}
}
