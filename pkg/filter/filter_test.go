package filter

import "testing"

func TestIsGenerated(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"regular jar", "org/example/app/1.0/app-1.0.jar", false},
		{"regular tarball at root", "app-1.0.tgz", false},
		{"maven metadata at root", "maven-metadata.xml", true},
		{"maven metadata nested", "org/example/app/maven-metadata.xml", true},
		{"debian packages index", "dists/stable/main/binary-amd64/Packages.gz", true},
		{"debian release file", "dists/stable/Release", true},
		{"rpm repodata", "repodata/repomd.xml", true},
		{"rpm primary index", "repodata/primary.xml.gz", true},
		{"helm index", "index.yaml", true},
		{"helm index nested", "charts/index.yaml", true},
		{"helm index lock file", "index.yaml.lock", true},
		{"docker tags", "library/app/tags.json", true},
		{"npm namespace", ".npm/app/package.json", true},
		{"jfrog namespace", ".jfrog/repository.catalog", true},
		{"pypi namespace", ".pypi/simple.html", true},
		{"versions namespace", "versions/1.0/app.jar", true},
		{"versions dir not at root", "app/versions/1.0.jar", false},
		{"uploads dir", "library/app/_uploads/blob123/data", true},
		{"uploads dir at root", "_uploads/blob123/data", true},
		{"uploads as bare path segment", "org/example/_uploads", true},
		{"by-hash dir", "dists/stable/main/by-hash/SHA256/abc", true},
		{"by-hash as bare path segment", "dists/by-hash", true},
		{"temp upload marker", "org/example/app-1.0.jar.tmp.upload", true},
		{"repository catalog", "repository.catalog", true},
		{"v2 repository catalog", "foo/repository_v2.catalog", true},
		{"name containing but not equal to generated name", "org/example/ReleaseNotes.txt", false},
		{"json artifact is kept", "config/settings.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGenerated(tt.path); got != tt.want {
				t.Errorf("IsGenerated(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
