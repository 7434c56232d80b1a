package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return New(config.EngineConfig{
		BaseURL:        url + "/",
		AuthToken:      "secret",
		RequestTimeout: time.Second,
		RetryCount:     2,
		RetryWait:      time.Millisecond,
		RetryMaxWait:   2 * time.Millisecond,
	})
}

func TestSubmitBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submissions/batch", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("base64_encoded"))
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))

		var body batchSubmitRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Submissions, 2) {
			assert.Equal(t, 63, body.Submissions[0].LanguageID)
			assert.Equal(t, "1 2", body.Submissions[0].Stdin)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"token":"a"},{"token":"b"}]`))
	}))
	defer srv.Close()

	tokens, err := newTestClient(srv.URL).SubmitBatch(context.Background(), []model.ExecutionJob{
		{SourceCode: "x", LanguageID: 63, Stdin: "1 2", ExpectedOutput: "3"},
		{SourceCode: "x", LanguageID: 63, Stdin: "2 2", ExpectedOutput: "4"},
	})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Token)
	assert.Equal(t, "b", tokens[1].Token)
}

func TestGetBatchDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b", r.URL.Query().Get("tokens"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"submissions":[
			{"token":"a","status":{"id":3,"description":"Accepted"},"stdout":"3\n","time":"0.012","memory":1024},
			{"token":"b","status":{"id":1,"description":"In Queue"},"stdout":null,"time":null,"memory":null}
		]}`))
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL).GetBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.StatusIDAccepted, results[0].Status.ID)
	assert.InDelta(t, 0.012, float64(results[0].Time), 1e-9)
	assert.EqualValues(t, 1024, results[0].Memory)
	assert.False(t, results[1].Status.Finished())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"submissions":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"language_id is invalid"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SubmitBatch(context.Background(), []model.ExecutionJob{{LanguageID: 999}})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	assert.Equal(t, opSubmitBatch, statusErr.Op)
	assert.Contains(t, statusErr.Body, "language_id")
	assert.EqualValues(t, 1, calls.Load())
}

func TestSubmitBatchIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SubmitBatch(context.Background(), []model.ExecutionJob{{LanguageID: 54}})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.True(t, statusErr.Temporary())
	assert.EqualValues(t, 1, calls.Load())
}

func TestStatusErrorTemporary(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
		http.StatusUnprocessableEntity: false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
	} {
		assert.Equal(t, want, (&StatusError{Code: code}).Temporary(), code)
	}
}
