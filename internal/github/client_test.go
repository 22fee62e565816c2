package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v66/github"

	"github.com/steveyegge/bd2gh/internal/engine"
)

// newTestClient points a Client at an httptest server speaking enough
// of the GitHub REST API for one test.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := gh.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	api.BaseURL = base
	return NewFromGitHub(api, "acme", "widgets")
}

func TestGetIssueNotFoundIsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))

	mirror, err := client.GetIssue(t.Context(), 999)
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if mirror != nil {
		t.Errorf("mirror = %+v, want nil", mirror)
	}
}

func TestCreateIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		var req gh.IssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.GetTitle() != "Add login" {
			t.Errorf("title = %q", req.GetTitle())
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number":12,"node_id":"I_12","state":"open","title":"Add login"}`)
	})
	client := newTestClient(t, mux)

	mirror, err := client.CreateIssue(t.Context(), engine.IssueRequest{
		Title:  "Add login",
		Body:   "body",
		Labels: []string{"beads"},
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if mirror.Number != 12 || mirror.NodeID != "I_12" {
		t.Errorf("mirror = %+v", mirror)
	}
}

func TestCloseIssueCommentsThenCloses(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "comment")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":555}`)
	})
	mux.HandleFunc("PATCH /repos/acme/widgets/issues/7", func(w http.ResponseWriter, r *http.Request) {
		var req gh.IssueRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.GetState() != "closed" || req.GetStateReason() != "completed" {
			t.Errorf("close request = %+v", req)
		}
		calls = append(calls, "close")
		fmt.Fprint(w, `{"number":7,"state":"closed"}`)
	})
	client := newTestClient(t, mux)

	if err := client.CloseIssue(t.Context(), 7, "done"); err != nil {
		t.Fatalf("CloseIssue: %v", err)
	}
	if len(calls) != 2 || calls[0] != "comment" || calls[1] != "close" {
		t.Errorf("calls = %v, want comment then close", calls)
	}
}

func TestCloseIssueWithoutComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty closing comment must not be posted")
	})
	mux.HandleFunc("PATCH /repos/acme/widgets/issues/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":7,"state":"closed"}`)
	})
	client := newTestClient(t, mux)

	if err := client.CloseIssue(t.Context(), 7, ""); err != nil {
		t.Fatalf("CloseIssue: %v", err)
	}
}

func TestEnsureLabelsCreatesMissing(t *testing.T) {
	var created []string
	lookups := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/labels/{name}", func(w http.ResponseWriter, r *http.Request) {
		lookups++
		if r.PathValue("name") == "beads" {
			fmt.Fprint(w, `{"name":"beads"}`)
			return
		}
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("POST /repos/acme/widgets/labels", func(w http.ResponseWriter, r *http.Request) {
		var label gh.Label
		_ = json.NewDecoder(r.Body).Decode(&label)
		created = append(created, label.GetName())
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"name":%q}`, label.GetName())
	})
	client := newTestClient(t, mux)

	labels := []string{"beads", "bd:status/open", ""}
	if err := client.EnsureLabels(t.Context(), labels); err != nil {
		t.Fatalf("EnsureLabels: %v", err)
	}
	if len(created) != 1 || created[0] != "bd:status/open" {
		t.Errorf("created = %v, want only the missing label", created)
	}

	// Second pass hits the cache, not the API.
	if err := client.EnsureLabels(t.Context(), labels); err != nil {
		t.Fatalf("EnsureLabels (cached): %v", err)
	}
	if lookups != 2 {
		t.Errorf("lookups = %d, want 2 (no re-fetch of known labels)", lookups)
	}
}

func TestEnsureLabelsToleratesCreateRace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/labels/{name}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("POST /repos/acme/widgets/labels", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
	})
	client := newTestClient(t, mux)

	if err := client.EnsureLabels(t.Context(), []string{"beads"}); err != nil {
		t.Fatalf("concurrent create must be tolerated: %v", err)
	}
}

func TestFilterValidAssignees(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/assignees/{login}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("login") == "alice" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	client := newTestClient(t, mux)

	valid, err := client.FilterValidAssignees(t.Context(), []string{"alice", "ghost", ""})
	if err != nil {
		t.Fatalf("FilterValidAssignees: %v", err)
	}
	if len(valid) != 1 || valid[0] != "alice" {
		t.Errorf("valid = %v, want [alice]", valid)
	}
}

func TestListIssuesByLabelPaginatesAndSkipsPRs(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/widgets/issues?page=2>; rel="next"`, serverURL))
			fmt.Fprint(w, `[{"number":1,"state":"open","body":"a"},{"number":2,"state":"open","pull_request":{"url":"x"}}]`)
		case "2":
			fmt.Fprint(w, `[{"number":3,"state":"closed","body":"c"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	api := gh.NewClient(nil)
	base, _ := url.Parse(server.URL + "/")
	api.BaseURL = base
	client := NewFromGitHub(api, "acme", "widgets")

	mirrors, err := client.ListIssuesByLabel(t.Context(), "beads")
	if err != nil {
		t.Fatalf("ListIssuesByLabel: %v", err)
	}
	if len(mirrors) != 2 {
		t.Fatalf("got %d mirrors, want 2 (PR excluded)", len(mirrors))
	}
	if mirrors[0].Number != 1 || mirrors[1].Number != 3 {
		t.Errorf("numbers = %d, %d; want 1, 3", mirrors[0].Number, mirrors[1].Number)
	}
}
