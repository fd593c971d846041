package amblob

import (
	"context"
	"io"

	"github.com/frantjc/apkmerge/android"
	"github.com/opencontainers/go-digest"
	"gocloud.dev/blob"
)

// Copy writes r to key in bucket as an .apk. If dig is not
// empty, it is attached to the object as metadata.
func Copy(ctx context.Context, bucket *blob.Bucket, key string, r io.Reader, dig digest.Digest) error {
	opts := &blob.WriterOptions{
		ContentType: android.ContentTypeAPK,
	}

	if dig != "" {
		opts.Metadata = map[string]string{"digest": dig.String()}
	}

	w, err := bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}
