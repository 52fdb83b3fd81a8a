package supervisor

import (
	"net/http"
	"path/filepath"
	"strings"
)

// staticHandler serves files from root, refusing any request whose
// resolved path falls outside it. http.FileServer already guards against
// ".." segments in the URL, but this adds the same canonicalization
// check the original monitor performs before trusting a path join
// (spec §4.4), since root may itself be reached via a symlink.
func staticHandler(root string) http.HandlerFunc {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	fileServer := http.FileServer(http.Dir(absRoot))

	return func(w http.ResponseWriter, r *http.Request) {
		reqPath := r.URL.Path
		if reqPath == "/" {
			reqPath = "/index.html"
		}

		resolved, err := filepath.Abs(filepath.Join(absRoot, filepath.Clean(reqPath)))
		if err != nil || !strings.HasPrefix(resolved, absRoot) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		r.URL.Path = reqPath
		fileServer.ServeHTTP(w, r)
	}
}
