package engine

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/scarlettk3/Stale-Data-Collection/internal/fetcher"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

func TestBuildInventory(t *testing.T) {
	mux := http.NewServeMux()
	handleRateLimit(mux)
	mux.HandleFunc("/orgs/acme/teams/platform/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"name": "alpha", "full_name": "acme/alpha", "owner": map[string]any{"login": "acme"}},
			{"name": "beta", "full_name": "acme/beta", "owner": map[string]any{"login": "acme"}},
		})
	})
	mux.HandleFunc("/repos/acme/alpha/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"name": "main"}, {"name": "dev"}, {"name": "feat"},
		})
	})
	mux.HandleFunc("/repos/acme/beta/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"name": "main"}})
	})

	client := newTestClient(t, mux)
	governor := fetcher.NewGovernor(client, fetcher.NewRequestBudget(), 0, 0)

	rows, err := BuildInventory(context.Background(), client, governor, output.NewManager(), "acme", "platform")
	if err != nil {
		t.Fatalf("BuildInventory failed: %v", err)
	}
	want := []InventoryRow{
		{Repository: "alpha", TotalBranches: 3},
		{Repository: "beta", TotalBranches: 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestBuildInventorySkipsBrokenRepo(t *testing.T) {
	mux := http.NewServeMux()
	handleRateLimit(mux)
	mux.HandleFunc("/orgs/acme/teams/platform/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"name": "broken", "full_name": "acme/broken", "owner": map[string]any{"login": "acme"}},
			{"name": "good", "full_name": "acme/good", "owner": map[string]any{"login": "acme"}},
		})
	})
	mux.HandleFunc("/repos/acme/broken/branches", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("/repos/acme/good/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"name": "main"}})
	})

	client := newTestClient(t, mux)
	governor := fetcher.NewGovernor(client, fetcher.NewRequestBudget(), 0, 0)

	rows, err := BuildInventory(context.Background(), client, governor, output.NewManager(), "acme", "platform")
	if err != nil {
		t.Fatalf("BuildInventory failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Repository != "good" {
		t.Errorf("rows = %+v, want just good", rows)
	}
}

func TestBuildInventoryTeamListingFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	handleRateLimit(mux)
	mux.HandleFunc("/orgs/acme/teams/nope/repos", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)
	governor := fetcher.NewGovernor(client, fetcher.NewRequestBudget(), 0, 0)

	_, err := BuildInventory(context.Background(), client, governor, output.NewManager(), "acme", "nope")
	if err == nil {
		t.Fatal("expected an error for a missing team")
	}
	if want := "list repositories for team acme/nope"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err, want)
	}
}
