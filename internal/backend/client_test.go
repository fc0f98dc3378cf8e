package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zipscope/zipscope/internal/types"
)

func sampleRequest() types.TaskRequest {
	return types.TaskRequest{
		SearchQuery: "dentists",
		LocationRules: types.LocationRules{
			Base:    []types.LocationRule{},
			Include: []types.LocationRule{{Type: types.RuleTypeState, Name: "CA"}},
		},
		DataFields:            []string{"name", "phone"},
		RatingFilter:          "4+",
		AdvancedOptions:       types.AdvancedOptions{MaxReviews: 10},
		TotalSelectedZipCodes: 2,
	}
}

func TestClient_SubmitTask(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody types.TaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"taskId": "remote-42"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).SubmitTask(context.Background(), "tok", sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "remote-42", res.TaskID)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, TasksPath, gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, sampleRequest(), gotBody)
}

func TestClient_SubmitTaskRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusBadRequest, `{"error": "Insufficient credits"}`, "Insufficient credits"},
		{"message field", http.StatusUnauthorized, `{"message": "token expired"}`, "token expired"},
		{"plain text", http.StatusBadGateway, "upstream exploded", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).SubmitTask(context.Background(), "tok", sampleRequest())
			apiErr, ok := IsAPIError(err)
			require.True(t, ok, "error %v is not an APIError", err)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestClient_SubmitTaskMissingToken(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second).SubmitTask(context.Background(), " ", sampleRequest())
	require.True(t, errors.Is(err, types.ErrMissingToken))
}

func TestClient_SubmitTaskUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).SubmitTask(context.Background(), "tok", sampleRequest())
	require.True(t, errors.Is(err, types.ErrBackendUnavailable))
}

func TestClient_SubmitTaskMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).SubmitTask(context.Background(), "tok", sampleRequest())
	require.Error(t, err)
}
