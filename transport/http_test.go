// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Do(t *testing.T) {
	t.Run("will send the method, headers and body", func(t *testing.T) {
		var gotMethod, gotHeader string
		var gotBody map[string]any

		mux := chi.NewRouter()
		mux.Post("/todos", func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotHeader = r.Header.Get("X-Api-Key")

			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &gotBody)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		})

		srv := httptest.NewServer(mux)
		defer srv.Close()

		resp, err := NewHTTP().Do(context.Background(), &Request{
			URL:     srv.URL + "/todos",
			Method:  http.MethodPost,
			Headers: map[string]string{"X-Api-Key": "secret"},
			Body:    json.RawMessage(`{"title":"a"}`),
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, http.MethodPost, gotMethod)
		require.Equal(t, "secret", gotHeader)
		require.Equal(t, map[string]any{"title": "a"}, gotBody)

		data, err := resp.Decode()
		require.NoError(t, err)
		require.Equal(t, map[string]any{"id": float64(1)}, data)
	})

	t.Run("will return a status error", func(t *testing.T) {
		t.Run("if the server responds with a 4xx or 5xx status", func(t *testing.T) {
			mux := chi.NewRouter()
			mux.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			_, err := NewHTTP().Do(context.Background(), &Request{
				URL:    srv.URL + "/fail",
				Method: http.MethodGet,
			})

			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
		})
	})

	t.Run("will use the provided client", func(t *testing.T) {
		var called bool
		client := &http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				called = true
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(http.NoBody),
					Header:     make(http.Header),
				}, nil
			}),
		}

		resp, err := NewHTTP(Client(client)).Do(context.Background(), &Request{
			URL:    "http://example.com",
			Method: http.MethodGet,
		})
		require.NoError(t, err)
		require.True(t, called)

		data, err := resp.Decode()
		require.NoError(t, err)
		require.Equal(t, map[string]any{}, data)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestResponse_Decode(t *testing.T) {
	t.Run("will return a decode error", func(t *testing.T) {
		t.Run("if the body is not json", func(t *testing.T) {
			resp := &Response{Body: []byte("not json")}

			_, err := resp.Decode()

			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
		})
	})
}

func TestRequest_Clone(t *testing.T) {
	t.Run("will not share headers with the original", func(t *testing.T) {
		req := &Request{Method: http.MethodGet, Headers: map[string]string{"a": "b"}}

		clone := req.Clone()
		clone.Headers["a"] = "c"

		require.Equal(t, "b", req.Headers["a"])
	})
}

func TestResponse_Clone(t *testing.T) {
	t.Run("will not share the body or headers with the original", func(t *testing.T) {
		resp := &Response{
			StatusCode: http.StatusOK,
			Headers:    map[string][]string{"X-A": {"b"}},
			Body:       []byte(`{"id":1}`),
		}

		clone := resp.Clone()
		clone.Headers["X-A"][0] = "c"
		clone.Body[0] = '['

		require.Equal(t, http.StatusOK, clone.StatusCode)
		require.Equal(t, "b", resp.Headers["X-A"][0])
		require.Equal(t, `{"id":1}`, string(resp.Body))
	})
}
