package storage

import (
	"testing"

	"github.com/vblendo1/koisando-green-alien/internal/config"
)

func TestBuildPublicURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "public base",
			cfg:  config.StorageConfig{PublicURL: "https://cdn.example.com/media/", BucketName: "catalog-media"},
			want: "https://cdn.example.com/media/products/p1/cover.png",
		},
		{
			name: "bare endpoint",
			cfg:  config.StorageConfig{Endpoint: "minio:9000", BucketName: "catalog-media"},
			want: "http://minio:9000/catalog-media/products/p1/cover.png",
		},
		{
			name: "tls endpoint",
			cfg:  config.StorageConfig{Endpoint: "s3.example.com", BucketName: "catalog-media", UseSSL: true},
			want: "https://s3.example.com/catalog-media/products/p1/cover.png",
		},
		{
			name: "endpoint with scheme",
			cfg:  config.StorageConfig{Endpoint: "https://s3.example.com/", BucketName: "b"},
			want: "https://s3.example.com/b/products/p1/cover.png",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildPublicURL(tc.cfg, "products/p1/cover.png"); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrefixes(t *testing.T) {
	if ProductPrefix("p1") != "products/p1/" || LessonPrefix("l1") != "lessons/l1/" {
		t.Fatal("unexpected media prefixes")
	}
}
