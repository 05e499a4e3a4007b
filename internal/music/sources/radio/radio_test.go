package radio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"moobot/internal/music/parsers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	})
	mux.HandleFunc("/list.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	})
	mux.HandleFunc("/head-rejected", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "audio/aac; charset=binary")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/live", false},
		{"/list.m3u8", false},
		{"/head-rejected", false},
		{"/page", true},
		{"/missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tracks, err := New().Resolve(context.Background(), srv.URL+tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, tracks, 1)
			assert.Equal(t, []string{parsers.FFmpegLink}, tracks[0].Parsers)
		})
	}
}
