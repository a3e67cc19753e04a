package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kalambet/mobi/internal/provider"
)

func newTestServer(t *testing.T, titles string, summaryStatus int, summaryJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "opensearch" {
			t.Errorf("action = %q", r.URL.Query().Get("action"))
		}
		fmt.Fprintf(w, `[%q, %s, [], []]`, r.URL.Query().Get("search"), titles)
	})
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(summaryStatus)
		fmt.Fprint(w, summaryJSON)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Summary(t *testing.T) {
	srv := newTestServer(t, `["Alan Turing"]`, http.StatusOK,
		`{"type":"standard","title":"Alan Turing","extract":"Alan Turing was a mathematician. He was born in 1912. He died in 1954."}`)

	c := NewWithBaseURL(srv.URL, 2)
	got, err := c.Fetch(context.Background(), "alan turing")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := "Alan Turing was a mathematician. He was born in 1912."
	if got != want {
		t.Errorf("Fetch = %q, want %q", got, want)
	}
}

func TestFetch_NoTitle(t *testing.T) {
	srv := newTestServer(t, `[]`, http.StatusOK, `{}`)

	c := NewWithBaseURL(srv.URL, 2)
	if _, err := c.Fetch(context.Background(), "qwertyuiop"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetch_Disambiguation(t *testing.T) {
	srv := newTestServer(t, `["Mercury"]`, http.StatusOK,
		`{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`)

	c := NewWithBaseURL(srv.URL, 2)
	if _, err := c.Fetch(context.Background(), "mercury"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetch_MissingPage(t *testing.T) {
	srv := newTestServer(t, `["Gone"]`, http.StatusNotFound, `{}`)

	c := NewWithBaseURL(srv.URL, 2)
	if _, err := c.Fetch(context.Background(), "gone"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := newTestServer(t, `["Thing"]`, http.StatusInternalServerError, `oops`)

	c := NewWithBaseURL(srv.URL, 2)
	_, err := c.Fetch(context.Background(), "thing")
	if err == nil || errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want transport error", err)
	}
}

func TestFetch_EmptyQuery(t *testing.T) {
	c := NewWithBaseURL("http://127.0.0.1:1", 2)
	if _, err := c.Fetch(context.Background(), "  "); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want string
	}{
		{"One. Two. Three.", 2, "One. Two."},
		{"One. Two.", 5, "One. Two."},
		{"Version 3.5 is out. Next!", 1, "Version 3.5 is out."},
		{"No terminator", 1, "No terminator"},
		{"Why? Because.", 1, "Why?"},
		{"", 2, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.text, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
		}
	}
}
