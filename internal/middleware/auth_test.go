package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiviz/internal/domain"
	"equiviz/internal/services"
)

type stubVerifier struct {
	identity *domain.Identity
	err      error
	seen     string
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	v.seen = token
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func TestAuthenticator(t *testing.T) {
	identity := domain.Identity{UserID: 7, Username: "alice"}

	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "valid token",
			header:     "Bearer good-token",
			verifier:   &stubVerifier{identity: &identity},
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "missing header",
			header:     "",
			verifier:   &stubVerifier{identity: &identity},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwdw==",
			verifier:   &stubVerifier{identity: &identity},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rejected token",
			header:     "Bearer bad-token",
			verifier:   &stubVerifier{err: services.ErrInvalidToken},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity domain.Identity
			var called bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := IdentityFromContext(r.Context())
				require.True(t, ok)
				gotIdentity = id
			})

			handler := Authenticator(tt.verifier, testLogger())(next)

			r := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantCalled {
				assert.Equal(t, identity, gotIdentity)
				assert.Equal(t, "good-token", tt.verifier.seen)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc", "abc"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, bearerToken(r), tt.header)
	}
}
