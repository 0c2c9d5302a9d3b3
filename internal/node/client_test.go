package node

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipesync/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(srv.URL, "secret-token", false, testLogger())
	c.VerifyPollInterval = time.Millisecond
	return c
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))

	_, err := c.Pipes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestEntitiesNormalizesNumbers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipes/orders/entities", r.URL.Path)
		w.Write([]byte(`[{"_id": "a", "amount": 3.0}, {"_id": "b", "amount": 2.5}]`))
	}))

	records, err := c.Entities(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.Number("3"), records[0]["amount"])
	assert.Equal(t, entity.Number("2.5"), records[1]["amount"])
}

func TestPublishedDataPassesParameters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publishers/report/xml", r.URL.Path)
		assert.Equal(t, "2020", r.URL.Query().Get("year"))
		w.Write([]byte("<doc/>"))
	}))

	data, err := c.PublishedData(context.Background(), "report", "xml", map[string]string{"year": "2020"})
	require.NoError(t, err)
	assert.Equal(t, "<doc/>", string(data))
}

func TestOutputPipesFiltersByClassification(t *testing.T) {
	pipes := []map[string]any{
		{"_id": "in", "config": map[string]any{"effective": map[string]any{
			"source": map[string]any{"type": "embedded"},
			"sink":   map[string]any{"type": "dataset", "dataset": "d"},
		}}},
		{"_id": "out", "config": map[string]any{"effective": map[string]any{
			"source": map[string]any{"type": "dataset", "dataset": "d"},
			"sink":   map[string]any{"type": "rest"},
		}}},
		{"_id": "ep", "config": map[string]any{"effective": map[string]any{
			"source": map[string]any{"type": "dataset", "dataset": "d"},
			"sink":   map[string]any{"type": "xml_endpoint"},
		}}},
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipes)
	}))

	out, err := c.OutputPipes(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "ep")
}

func TestGetSystemNotFoundIsNil(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	sys, err := c.GetSystem(context.Background(), "scheduler")
	require.NoError(t, err)
	assert.Nil(t, sys)
}

func TestAddSystemVerifyPollsUntilConfigMatches(t *testing.T) {
	var polls atomic.Int32
	config := map[string]any{"_id": "scheduler", "type": "system:microservice"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /systems", func(w http.ResponseWriter, r *http.Request) {
		var posted []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		require.Len(t, posted, 1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /systems/scheduler", func(w http.ResponseWriter, r *http.Request) {
		// First poll: stored config not yet caught up.
		if polls.Add(1) < 2 {
			json.NewEncoder(w).Encode(map[string]any{
				"_id":    "scheduler",
				"config": map[string]any{"original": map[string]any{"_id": "scheduler"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"_id":    "scheduler",
			"config": map[string]any{"original": config},
		})
	})
	c := newTestClient(t, mux)

	err := c.AddSystem(context.Background(), config, true, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestAddSystemVerifyTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /systems", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /systems/scheduler", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"_id":    "scheduler",
			"config": map[string]any{"original": map[string]any{"_id": "other"}},
		})
	})
	c := newTestClient(t, mux)

	err := c.AddSystem(context.Background(), map[string]any{"_id": "scheduler"}, true, 5*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not verify")
}

func TestRemoveSystemMissingIsNoError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	require.NoError(t, c.RemoveSystem(context.Background(), "scheduler"))
}

func TestSystemLogSinceCursor(t *testing.T) {
	var gotSince string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		w.Write([]byte("42 line one\n43 line two\n"))
	}))

	out, err := c.SystemLog(context.Background(), "scheduler", "41")
	require.NoError(t, err)
	assert.Equal(t, "41", gotSince)
	assert.Contains(t, out, "line one")
}

func TestRemoveUserDatasetsSkipsSystemDatasets(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /datasets", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "system:pipes"},
			{"_id": "orders"},
			{"_id": "customers"},
		})
	})
	mux.HandleFunc("DELETE /datasets/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.PathValue("id"))
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.RemoveUserDatasets(context.Background()))
	assert.Equal(t, []string{"orders", "customers"}, deleted)
}

func TestRequestErrorSurfacesStatusAndBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))

	_, err := c.Pipes(context.Background())
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Equal(t, "boom", reqErr.Body)
}
