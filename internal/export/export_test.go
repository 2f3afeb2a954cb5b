package export_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"songlens/internal/export"
	"songlens/internal/keybpm"
	"songlens/internal/song"
)

var models = []string{"mood_happy", "mood_sad"}

func TestWriteCSV(t *testing.T) {
	views := []song.View{
		{
			FileName: "a.mp3",
			Analysis: keybpm.Result{Key: "C", Scale: "major", BPM: 119.6},
			Results: map[string]song.Result{
				"mood_happy": {Value: 0.876},
				"mood_sad":   {Value: 0.5, IsError: true},
			},
		},
		{
			FileName: "b, live.wav",
			Analysis: keybpm.Sentinel(),
			Results:  map[string]song.Result{},
		},
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, views, models); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := strings.Join([]string{
		"filename,Mood Happy,Mood Sad,bpm,key",
		"a.mp3,88,0,120,C major",
		`"b, live.wav",0,0,,`,
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

type fakeObjectStore struct {
	exists  bool
	made    string
	bucket  string
	object  string
	content string
}

func (f *fakeObjectStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeObjectStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = bucket
	return nil
}

func (f *fakeObjectStore) FPutObject(_ context.Context, bucket, object, filePath string, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.object, f.content = bucket, object, string(data)
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func TestUploaderCreatesBucketAndPrefixesKey(t *testing.T) {
	local := filepath.Join(t.TempDir(), "results.csv")
	if err := os.WriteFile(local, []byte("filename\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeObjectStore{}
	u := export.NewUploaderWithClient(fake, "songlens", "/exports/", nil)

	key, err := u.Upload(context.Background(), local)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if key != "exports/results.csv" || fake.object != key {
		t.Fatalf("unexpected object key %q (stored %q)", key, fake.object)
	}
	if fake.made != "songlens" || fake.content != "filename\n" {
		t.Fatalf("unexpected upload state %+v", fake)
	}
}
