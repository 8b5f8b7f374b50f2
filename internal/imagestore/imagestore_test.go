package imagestore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/unilost/lostfound/internal/config"
	"github.com/unilost/lostfound/internal/db"
	"github.com/unilost/lostfound/internal/store"
)

func TestSign(t *testing.T) {
	// Reference value from Cloudinary's signature documentation.
	params := map[string]string{
		"eager":     "w_400,h_300,c_pad|w_260,h_200,c_crop",
		"public_id": "sample_image",
		"timestamp": "1315060510",
	}
	got := sign(params, "abcd")
	want := "bfd09f95f331f558cbd1320e67aa8d488770583e"
	if got != want {
		t.Errorf("sign = %s, want %s", got, want)
	}
}

func TestDatabaseStore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	s := &Database{DB: database}

	ref, err := s.Put(ctx, []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref.Key, keyPrefix) {
		t.Errorf("expected key prefix %q, got %q", keyPrefix, ref.Key)
	}
	if ref.URL != ServePath+ref.Key {
		t.Errorf("unexpected url %q", ref.URL)
	}

	data, mime, err := store.GetImage(ctx, database, ref.Key)
	if err != nil || string(data) != "jpeg-bytes" || mime != "image/jpeg" {
		t.Fatalf("GetImage: %q %q %v", data, mime, err)
	}

	if err := s.Delete(ctx, ref.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	data, _, _ = store.GetImage(ctx, database, ref.Key)
	if data != nil {
		t.Error("expected image deleted")
	}
}

func TestCloudinaryUploadAndDestroy(t *testing.T) {
	const secret = "shh"
	var destroyed string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/demo/image/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parsing upload: %v", err)
			}
		case "/demo/image/destroy":
			r.ParseForm()
			destroyed = r.PostForm.Get("public_id")
		default:
			http.NotFound(w, r)
			return
		}

		signed := map[string]string{}
		for k, v := range r.PostForm {
			if k != "signature" && k != "api_key" {
				signed[k] = v[0]
			}
		}
		if got := r.PostForm.Get("signature"); got != sign(signed, secret) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Invalid Signature"}})
			return
		}
		if r.PostForm.Get("api_key") != "key" {
			t.Errorf("expected api_key, got %q", r.PostForm.Get("api_key"))
		}

		if strings.HasSuffix(r.URL.Path, "/upload") {
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("missing file: %v", err)
				return
			}
			body, _ := io.ReadAll(f)
			if string(body) != "photo" {
				t.Errorf("unexpected file body %q", body)
			}
			id := r.PostForm.Get("folder") + "/" + r.PostForm.Get("public_id")
			json.NewEncoder(w).Encode(map[string]string{
				"secure_url": "https://res.example.com/" + id + ".jpg",
				"public_id":  id,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	c := &Cloudinary{CloudName: "demo", APIKey: "key", APISecret: secret, Folder: "lost_and_found", BaseURL: srv.URL}
	ctx := context.Background()

	ref, err := c.Put(ctx, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref.Key, "lost_and_found/"+keyPrefix) {
		t.Errorf("unexpected public id %q", ref.Key)
	}

	if err := c.Delete(ctx, ref.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if destroyed != ref.Key {
		t.Errorf("destroyed %q, want %q", destroyed, ref.Key)
	}

	c.APISecret = "wrong"
	if _, err := c.Put(ctx, []byte("photo"), "image/jpeg"); err == nil || !strings.Contains(err.Error(), "Invalid Signature") {
		t.Errorf("expected signature error, got %v", err)
	}
}

func TestS3PutAndDelete(t *testing.T) {
	var (
		mu      sync.Mutex
		objects = map[string][]byte{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(objects, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := NewS3(ctx, S3Options{
		Bucket:    "photos",
		Region:    "us-east-1",
		Prefix:    "items",
		Endpoint:  srv.URL,
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	ref, err := s.Put(ctx, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	wantURL := srv.URL + "/photos/items/" + ref.Key
	if ref.URL != wantURL {
		t.Errorf("URL = %q, want %q", ref.URL, wantURL)
	}

	mu.Lock()
	got := objects["/photos/items/"+ref.Key]
	mu.Unlock()
	if !bytes.Contains(got, []byte("photo")) {
		t.Errorf("expected object body stored, got %q", got)
	}

	if err := s.Delete(ctx, ref.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := objects["/photos/items/"+ref.Key]; ok {
		t.Error("expected object deleted")
	}
}

func TestS3PublicURL(t *testing.T) {
	s := &S3{opts: S3Options{Bucket: "b", Region: "eu-west-1"}}
	if got := s.url("k"); got != "https://b.s3.eu-west-1.amazonaws.com/k" {
		t.Errorf("url = %q", got)
	}
	s.opts.PublicURL = "https://cdn.uni.edu/"
	if got := s.url("k"); got != "https://cdn.uni.edu/k" {
		t.Errorf("url = %q", got)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)

	s, err := New(ctx, config.ImagesConfig{Backend: "database"}, database)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*Database); !ok {
		t.Errorf("expected *Database, got %T", s)
	}

	s, err = New(ctx, config.ImagesConfig{Backend: "cloudinary", CloudinaryCloudName: "demo"}, database)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*Cloudinary); !ok {
		t.Errorf("expected *Cloudinary, got %T", s)
	}

	if _, err := New(ctx, config.ImagesConfig{Backend: "ftp"}, database); err == nil {
		t.Error("expected error for unknown backend")
	}
}
