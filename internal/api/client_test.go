package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client pointing at the given httptest server
// with a fixed request ID.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient(url, http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)), "test-agent")
	c.newRequestID = func() string { return "req-1" }

	return c
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"code":0,"data":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/api/auth/me", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":0,"data":"ok"}`, string(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_SetsHeaders(t *testing.T) {
	var got http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	req, err := client.NewRequest(context.Background(), http.MethodPost, "/x", []byte(`{}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "test-agent", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "req-1", got.Get(HeaderRequestID))
	assert.Empty(t, got.Get("Authorization"), "the client never attaches credentials")
}

func TestNewRequest_NoBodyNoContentType(t *testing.T) {
	client := newTestClient(t, "http://example.invalid")

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, "http://example.invalid/x", req.URL.String())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("http://h", nil, nil, "")

	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.Equal(t, http.DefaultClient, c.httpClient)
	assert.Equal(t, "http://h", c.BaseURL())
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"conflict", http.StatusConflict, ErrConflict},
		{"too many requests", http.StatusTooManyRequests, ErrThrottled},
		{"teapot", http.StatusTeapot, ErrRejected},
		{"internal server error", http.StatusInternalServerError, ErrServerError},
		{"bad gateway", http.StatusBadGateway, ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":` + strconv.Itoa(tt.status) + `,"message":"nope"}`))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)

			req, err := client.NewRequest(context.Background(), http.MethodGet, "/x", nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "req-1", apiErr.RequestID)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)

	_, err = client.Do(req)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.Zero(t, apiErr.Code)
	assert.Contains(t, err.Error(), "request-id: req-1")
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url)

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Zero(t, StatusCode(err))
}

func TestDo_CanceledContextIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := client.NewRequest(ctx, http.MethodGet, "/x", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestPostJSON_DecodesEnvelopeData(t *testing.T) {
	var gotBody LoginRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathLogin, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"accessToken":"a","refreshToken":"r","tokenType":"Bearer","expiresIn":900}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var tr TokenResponse
	require.NoError(t, client.PostJSON(context.Background(), PathLogin, LoginRequest{Username: "alice", Password: "pw"}, &tr))

	assert.Equal(t, LoginRequest{Username: "alice", Password: "pw"}, gotBody)
	assert.Equal(t, TokenResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 900}, tr)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  error
		wantUser CurrentUser
		wantMsg  string
	}{
		{
			name:     "data",
			body:     `{"code":0,"message":"ok","data":{"id":3,"username":"alice","role":1,"roleName":"admin"}}`,
			wantUser: CurrentUser{ID: 3, Username: "alice", Role: 1, RoleName: "admin"},
		},
		{
			name:     "null data",
			body:     `{"code":0,"data":null}`,
			wantUser: CurrentUser{},
		},
		{
			name:     "missing data",
			body:     `{"code":0}`,
			wantUser: CurrentUser{},
		},
		{
			name:    "business error with message",
			body:    `{"code":10001,"message":"account disabled"}`,
			wantErr: ErrRejected,
			wantMsg: "account disabled",
		},
		{
			name:    "business error with msg",
			body:    `{"code":10002,"msg":"bad captcha"}`,
			wantErr: ErrRejected,
			wantMsg: "bad captcha",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}

			var u CurrentUser

			err := Decode(resp, &u)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				var apiErr *Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantMsg, apiErr.Message)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, u)
		})
	}
}

func TestDecode_NotAnEnvelope(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`<html>`)),
	}

	err := Decode(resp, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding envelope")
}

func TestCurrentUser_UserIDFallsBackToPID(t *testing.T) {
	assert.Equal(t, int64(5), CurrentUser{ID: 5, PID: 9}.UserID())
	assert.Equal(t, int64(9), CurrentUser{PID: 9}.UserID())
}
