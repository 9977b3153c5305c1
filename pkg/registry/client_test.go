package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clingen-curation-server/internal/domain"
)

func testRegistryLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&domain.RegistryConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, testRegistryLogger())
}

func TestClient_LookupUserPKByEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		switch r.URL.Query().Get("email") {
		case "alice@example.org":
			json.NewEncoder(w).Encode([]map[string]string{{"PK": "user-1"}})
		default:
			json.NewEncoder(w).Encode([]map[string]string{})
		}
	}))

	pk, err := client.LookupUserPKByEmail(context.Background(), "alice@example.org")
	require.NoError(t, err)
	assert.Equal(t, "user-1", pk)

	_, err = client.LookupUserPKByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_LoadGDM(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gdms/gdm-1":
			io.WriteString(w, `{
				"PK": "gdm-1",
				"item_type": "gdm",
				"modeInheritance": "Autosomal dominant inheritance (HP:0000006)",
				"variantPathogenicity": ["path-1", "path-2"]
			}`)
		case "/annotations":
			assert.Equal(t, "gdm-1", r.URL.Query().Get("associatedGdm"))
			io.WriteString(w, `[{"PK": "ann-1", "item_type": "annotation"}]`)
		case "/pathogenicity/path-1":
			io.WriteString(w, `{"PK": "path-1", "item_type": "pathogenicity"}`)
		case "/pathogenicity/path-2":
			io.WriteString(w, `{"PK": "path-2", "item_type": "pathogenicity"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	gdm, err := client.LoadGDM(context.Background(), "gdm-1")
	require.NoError(t, err)
	assert.Equal(t, "gdm-1", gdm.PK)
	assert.Equal(t, "Autosomal dominant inheritance (HP:0000006)", gdm.ModeInheritance)
	require.Len(t, gdm.Annotations, 1)
	assert.Equal(t, "ann-1", gdm.Annotations[0].PK)
	require.Len(t, gdm.VariantPathogenicity, 2)
	assert.Equal(t, "path-1", gdm.VariantPathogenicity[0].PK)
	assert.Equal(t, "path-2", gdm.VariantPathogenicity[1].PK)
}

func TestClient_LoadGDM_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.LoadGDM(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_LoadGDM_WrongItemType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"PK": "gdm-1", "item_type": "interpretation"}`)
	}))

	_, err := client.LoadGDM(context.Background(), "gdm-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_LoadInterpretation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/interpretations" && r.URL.Query().Get("PK") == "interp-1":
			io.WriteString(w, `{
				"PK": "interp-1",
				"item_type": "interpretation",
				"variant": "var-9",
				"evaluations": ["eval-1"],
				"curated_evidence_list": ["ce-1"]
			}`)
		case r.URL.Path == "/evaluations/eval-1":
			io.WriteString(w, `{"PK": "eval-1", "item_type": "evaluation"}`)
		case r.URL.Path == "/curated-evidences/ce-1":
			io.WriteString(w, `{"PK": "ce-1", "item_type": "curated-evidence"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	interp, err := client.LoadInterpretation(context.Background(), "interp-1")
	require.NoError(t, err)
	assert.Equal(t, "interp-1", interp.PK)
	assert.Equal(t, "var-9", interp.Variant)
	require.Len(t, interp.Evaluations, 1)
	assert.Equal(t, "eval-1", interp.Evaluations[0].PK)
	require.Len(t, interp.CuratedEvidences, 1)
	assert.Equal(t, "ce-1", interp.CuratedEvidences[0].PK)
}

func TestClient_FindInterpretations(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interpretations", r.URL.Path)
		assert.Equal(t, "var-9", r.URL.Query().Get("variant"))

		if r.URL.Query().Get("affiliation") == "10021" {
			io.WriteString(w, `[{"PK": "interp-2", "item_type": "interpretation"}]`)
			return
		}
		assert.Equal(t, "user-1", r.URL.Query().Get("submitted_by"))
		io.WriteString(w, `[]`)
	}))

	found, err := client.FindInterpretations(context.Background(), domain.InterpretationFilter{
		Variant:     "var-9",
		Affiliation: "10021",
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "interp-2", found[0].PK)

	found, err = client.FindInterpretations(context.Background(), domain.InterpretationFilter{
		Variant:     "var-9",
		SubmittedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClient_UpdateObject(t *testing.T) {
	affiliation := "10021"
	var gotBody map[string]json.RawMessage

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/individuals/ind-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateObject(context.Background(), domain.ObjectUpdate{
		PK:             "ind-1",
		ItemType:       "individual",
		NewAffiliation: &affiliation,
		ModifiedBy:     "admin-1",
	})
	require.NoError(t, err)

	// The update document rides in a newObj envelope
	var update domain.ObjectUpdate
	require.NoError(t, json.Unmarshal(gotBody["newObj"], &update))
	assert.Equal(t, "ind-1", update.PK)
	require.NotNil(t, update.NewAffiliation)
	assert.Equal(t, "10021", *update.NewAffiliation)
	assert.Equal(t, "admin-1", update.ModifiedBy)
}

func TestClient_UpdateObject_ClearedAffiliationIsNull(t *testing.T) {
	var rawBody map[string]map[string]interface{}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rawBody))
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateObject(context.Background(), domain.ObjectUpdate{
		PK:             "ind-1",
		ItemType:       "individual",
		NewAffiliation: nil,
	})
	require.NoError(t, err)

	// Clearing sends an explicit null, not an omitted field
	val, present := rawBody["newObj"]["affiliation"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestClient_UpdateObject_UnknownItemType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an unroutable item type")
	}))

	err := client.UpdateObject(context.Background(), domain.ObjectUpdate{
		PK:       "x-1",
		ItemType: "mystery",
	})
	assert.Error(t, err)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{{"PK": "user-1"}})
	}))
	defer server.Close()

	client := NewClient(&domain.RegistryConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		RetryCount: 3,
	}, testRegistryLogger())

	pk, err := client.LookupUserPKByEmail(context.Background(), "alice@example.org")
	require.NoError(t, err)
	assert.Equal(t, "user-1", pk)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(&domain.RegistryConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		RetryCount: 3,
	}, testRegistryLogger())

	_, err := client.LoadGDM(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

// stubDirectory counts delegate lookups for the caching tests.
type stubDirectory struct {
	calls atomic.Int32
	pks   map[string]string
}

func (s *stubDirectory) LookupUserPKByEmail(ctx context.Context, email string) (string, error) {
	s.calls.Add(1)
	if pk, ok := s.pks[email]; ok {
		return pk, nil
	}
	return "", domain.ErrNotFound
}

func TestCachingDirectory_MemoryTier(t *testing.T) {
	delegate := &stubDirectory{pks: map[string]string{"alice@example.org": "user-1"}}

	dir, err := NewCachingDirectory(delegate, &domain.CacheConfig{
		MemorySize: 8,
		DefaultTTL: time.Minute,
	}, testRegistryLogger())
	require.NoError(t, err)
	defer dir.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		pk, err := dir.LookupUserPKByEmail(ctx, "alice@example.org")
		require.NoError(t, err)
		assert.Equal(t, "user-1", pk)
	}
	assert.Equal(t, int32(1), delegate.calls.Load(), "repeated lookups should hit the memory tier")
}

func TestCachingDirectory_CachesNotFound(t *testing.T) {
	delegate := &stubDirectory{pks: map[string]string{}}

	dir, err := NewCachingDirectory(delegate, &domain.CacheConfig{
		MemorySize: 8,
		DefaultTTL: time.Minute,
	}, testRegistryLogger())
	require.NoError(t, err)
	defer dir.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := dir.LookupUserPKByEmail(ctx, "nobody@example.org")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, int32(1), delegate.calls.Load())
}

func TestResilientClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewResilientClient(&domain.RegistryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, testRegistryLogger())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.LookupUserPKByEmail(ctx, "alice@example.org")
		require.Error(t, err)
	}

	// Once open, requests are rejected without reaching the server
	before := calls.Load()
	_, err := client.LookupUserPKByEmail(ctx, "alice@example.org")
	require.Error(t, err)
	assert.Equal(t, before, calls.Load())
}

func TestResilientClient_NotFoundDoesNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{})
	}))
	defer server.Close()

	client := NewResilientClient(&domain.RegistryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, testRegistryLogger())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := client.LookupUserPKByEmail(ctx, "nobody@example.org")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestResilientClient_UpdateObjectPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewResilientClient(&domain.RegistryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, testRegistryLogger())

	affiliation := "10021"
	err := client.UpdateObject(context.Background(), domain.ObjectUpdate{
		PK:             "ind-1",
		ItemType:       "individual",
		NewAffiliation: &affiliation,
	})
	assert.NoError(t, err)
}
