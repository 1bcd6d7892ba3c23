package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTemplatesContainIndex(t *testing.T) {
	if _, err := fs.Stat(Templates(), "index.html"); err != nil {
		t.Fatalf("index.html missing: %v", err)
	}
}

func TestStaticHandler(t *testing.T) {
	h := StaticHandler()

	tests := []struct {
		path string
		want int
	}{
		{"/static/widget.js", http.StatusOK},
		{"/static/style.css", http.StatusOK},
		{"/static/missing.js", http.StatusNotFound},
		{"/static/", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}
