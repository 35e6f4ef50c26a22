package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
	"github.com/mmcdole/rolo/internal/log"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, log.NullLogger())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLoginDecodesTokenPair(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds domain.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "jane", creds.Username)

		writeJSON(w, http.StatusOK, map[string]string{
			"access_token":  "a1",
			"refresh_token": "r1",
			"token_type":    "bearer",
		})
	})

	sess, err := c.Login(context.Background(), domain.Credentials{Username: "jane", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domain.Session{AccessToken: "a1", RefreshToken: "r1"}, sess)
}

func TestLoginRejectsIncompleteTokenPair(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "a1"})
	})

	_, err := c.Login(context.Background(), domain.Credentials{Username: "jane", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrServer)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		var body refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "a2", "token_type": "bearer"})
	})

	sess, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.Session{AccessToken: "a2", RefreshToken: "r1"}, sess)
}

func TestBearerAndRequestIDHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "c1", "name": "Jane Doe", "email": "jane@x.com"},
			{"id": "c2", "name": "John Roe", "email": nil},
		})
	})

	ctx := gateway.WithRequestID(context.Background(), "req-1")
	contacts, err := c.ListContacts(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "jane@x.com", contacts[0].EmailOrEmpty())
	assert.Nil(t, contacts[1].Email)
}

func TestGetContactPreservesPhoneOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/c1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "c1", "name": "Jane Doe", "email": "jane@x.com",
			"phones": []map[string]any{
				{"id": "p1", "number": "+1-555-0100", "number_type": "mobile"},
				{"id": "p2", "number": "+1-555-0199", "number_type": nil},
			},
		})
	})

	contact, err := c.GetContact(context.Background(), "a1", "c1")
	require.NoError(t, err)
	require.Len(t, contact.Phones, 2)
	assert.Equal(t, "p1", contact.Phones[0].ID)
	assert.Equal(t, "mobile", contact.Phones[0].TypeOrEmpty())
	assert.Equal(t, "", contact.Phones[1].TypeOrEmpty())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"expired"}`, domain.ErrUnauthorized},
		{"not found", http.StatusNotFound, `{"detail":"Not found"}`, domain.ErrNotFound},
		{"validation", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","name"],"msg":"field required"}]}`, domain.ErrValidation},
		{"bad request", http.StatusBadRequest, `{"detail":"Email already registered"}`, domain.ErrValidation},
		{"server", http.StatusInternalServerError, `oops`, domain.ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.GetContact(context.Background(), "a1", "c1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":[{"loc":["body","name"],"msg":"field required","type":"missing"}]}`)
	})

	_, err := c.CreateContact(context.Background(), "a1", domain.ContactCreate{UserID: "u1"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, "field required", verr.Reason)
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond, log.NullLogger())
	_, err := c.ListContacts(context.Background(), "a1")

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, domain.KindNetwork, domain.Classify(err))
}

func TestDeleteAcceptsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/phones/p1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.DeletePhone(context.Background(), "a1", "p1"))
}

func TestUploadCardsSendsMultipartForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/upload-vcf", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "u1", r.FormValue("user_id"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "cards.vcf", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Contains(t, string(data), "BEGIN:VCARD")

		writeJSON(w, http.StatusOK, map[string]int{"count": 2, "skipped": 1})
	})

	result, err := c.UploadCards(context.Background(), "a1", "u1", "cards.vcf", strings.NewReader("BEGIN:VCARD\r\nEND:VCARD\r\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadResult{Count: 2, Skipped: 1}, *result)
}
