package amblob

import (
	"context"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Publish uploads the file at name to key in the bucket at urlstr.
// The bucket's scheme must have been registered by importing its
// driver, e.g. gocloud.dev/blob/fileblob. An object already at key
// with the same digest is left as-is.
func Publish(ctx context.Context, urlstr, key, name string) error {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", urlstr, err)
	}
	defer bucket.Close()

	dig, err := digestFile(name)
	if err != nil {
		return err
	}

	attrs, err := bucket.Attributes(ctx, key)
	switch {
	case err == nil && attrs.Metadata["digest"] == dig.String():
		return nil
	case err != nil && gcerrors.Code(err) != gcerrors.NotFound:
		return fmt.Errorf("stat %s: %w", key, err)
	}

	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Copy(ctx, bucket, key, f, dig); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

func digestFile(name string) (digest.Digest, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return digest.FromReader(f)
}
