package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Get_SetsUserAgent(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer ts.Close()

	f := New(Options{UserAgent: "test-agent/1.0"})
	body, err := f.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body = %q", body)
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("user agent = %q, want test-agent/1.0", gotUA)
	}
}

func TestFetcher_Get_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := New(Options{}).Get(context.Background(), ts.URL+"/missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *fetch.Error", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", fe.StatusCode)
	}
	if !strings.Contains(fe.URL, "/missing") {
		t.Errorf("url = %q", fe.URL)
	}
	if !IsFetchError(err) {
		t.Error("IsFetchError should be true")
	}
}

func TestFetcher_Get_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	f := New(Options{Timeout: 50 * time.Millisecond})
	if _, err := f.Get(context.Background(), ts.URL); !IsFetchError(err) {
		t.Fatalf("expected fetch error on timeout, got %v", err)
	}
}

func TestFetcher_Get_BodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer ts.Close()

	f := New(Options{MaxBytes: 16})
	if _, err := f.Get(context.Background(), ts.URL); err == nil {
		t.Fatal("expected body limit error")
	}
}

func TestFetcher_Get_BadURL(t *testing.T) {
	_, err := New(Options{}).Get(context.Background(), "://bad")
	if !IsFetchError(err) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestResult(t *testing.T) {
	ok := Ok("value")
	if !ok.IsOk() || ok.Kind() != KindOK {
		t.Fatalf("Ok result = %+v", ok)
	}
	if v, err := ok.Unwrap(); v != "value" || err != nil {
		t.Errorf("Unwrap = %q, %v", v, err)
	}

	failed := Fail[string](KindNotFound, nil)
	if failed.IsOk() {
		t.Fatal("Fail result should not be ok")
	}
	if failed.Err() == nil {
		t.Error("Fail with nil err should still carry an error")
	}
	if v, err := failed.Unwrap(); v != "" || err == nil {
		t.Errorf("Unwrap on failure = %q, %v", v, err)
	}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"fetch error", &Error{URL: "u", StatusCode: 500}, KindFetchFailed},
		{"wrapped fetch error", errors.Join(errors.New("ctx"), &Error{URL: "u"}), KindFetchFailed},
		{"other", errors.New("bad html"), KindParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify[int](tt.err, KindParseFailed).Kind(); got != tt.want {
				t.Errorf("Classify kind = %v, want %v", got, tt.want)
			}
		})
	}
}
