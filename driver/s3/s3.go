// Package s3 implements the drivekit RemoteAPI over a single Amazon S3
// bucket. Directories are zero-byte objects whose key ends in "/".
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gobeaver/drivekit"
)

// DefaultURLTTL is the lifetime of presigned download URLs when the
// caller does not ask for one explicitly.
const DefaultURLTTL = 15 * time.Minute

// Adapter provides an S3 implementation of drivekit.RemoteAPI
type Adapter struct {
	client *s3.Client
	bucket string
	prefix string
	urlTTL time.Duration
}

// AdapterOption is a function that configures the Adapter
type AdapterOption func(*Adapter)

// WithPrefix confines the adapter to a key prefix inside the bucket.
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		a.prefix = prefix
	}
}

// WithURLTTL sets the lifetime of presigned download URLs.
func WithURLTTL(ttl time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.urlTTL = ttl
	}
}

// New creates a new S3 adapter for the given bucket.
func New(client *s3.Client, bucket string, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client: client,
		bucket: bucket,
		urlTTL: DefaultURLTTL,
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// key converts an absolute virtual path into an object key.
func (a *Adapter) key(p string) string {
	return path.Join(a.prefix, strings.TrimPrefix(p, "/"))
}

// dirKey is key with the trailing slash directory marker.
func (a *Adapter) dirKey(p string) string {
	k := a.key(p)
	if k == "" || k == "." {
		return a.prefix
	}
	return k + "/"
}

func mapError(op, p string, err error) error {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return drivekit.NewPathError(op, p, drivekit.ErrNotExist)
	}
	return drivekit.NewPathError(op, p, err)
}

// ============================================================================
// RemoteAPI Implementation
// ============================================================================

// Info implements drivekit.RemoteAPI
func (a *Adapter) Info(ctx context.Context, p string, opts ...drivekit.Option) (*drivekit.Attributes, error) {
	if p == "/" {
		return &drivekit.Attributes{Name: "", Path: "/", IsDir: true}, nil
	}

	head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err == nil {
		attrs := &drivekit.Attributes{
			Name:        path.Base(p),
			Path:        p,
			Size:        aws.ToInt64(head.ContentLength),
			ModTime:     aws.ToTime(head.LastModified),
			ContentType: aws.ToString(head.ContentType),
		}
		if etag := strings.Trim(aws.ToString(head.ETag), `"`); etag != "" {
			// Single-part ETags are the object's MD5.
			if !strings.Contains(etag, "-") {
				attrs.Extra = map[string]string{"md5": etag}
			}
		}
		return attrs, nil
	}

	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if !errors.As(err, &nsk) && !errors.As(err, &notFound) {
		return nil, mapError("info", p, err)
	}

	// Not an object; a directory exists if anything lives under it.
	resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(a.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, mapError("info", p, err)
	}
	if len(resp.Contents) == 0 && len(resp.CommonPrefixes) == 0 {
		return nil, drivekit.NewPathError("info", p, drivekit.ErrNotExist)
	}
	return &drivekit.Attributes{Name: path.Base(p), Path: p, IsDir: true}, nil
}

// List implements drivekit.RemoteAPI. S3 paginates by continuation
// token, not page number, so the full delimiter listing is fetched and
// the requested page sliced out of it.
func (a *Adapter) List(ctx context.Context, dir string, page, perPage int, opts ...drivekit.Option) (*drivekit.ListResult, error) {
	listPrefix := a.dirKey(dir)
	base := strings.TrimRight(dir, "/")

	var items []drivekit.Attributes
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		resp, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("list", dir, err)
		}
		for _, cp := range resp.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), listPrefix), "/")
			if name == "" {
				continue
			}
			items = append(items, drivekit.Attributes{
				Name:  name,
				Path:  base + "/" + name,
				IsDir: true,
			})
		}
		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			items = append(items, drivekit.Attributes{
				Name:    name,
				Path:    base + "/" + name,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	total := len(items)
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		lo := (page - 1) * perPage
		if lo > total {
			lo = total
		}
		hi := lo + perPage
		if hi > total {
			hi = total
		}
		items = items[lo:hi]
	}
	return &drivekit.ListResult{Items: items, Total: total}, nil
}

// Mkdir implements drivekit.RemoteAPI
func (a *Adapter) Mkdir(ctx context.Context, p string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.dirKey(p)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return mapError("mkdir", p, err)
	}
	return nil
}

// Rename implements drivekit.RemoteAPI
func (a *Adapter) Rename(ctx context.Context, p, newName string) error {
	dir := path.Dir(p)
	if dir == "." {
		dir = "/"
	}
	dst := path.Join(dir, newName)
	if err := a.copyTree(ctx, p, dst); err != nil {
		return drivekit.NewPathError("rename", p, err)
	}
	if err := a.deleteTree(ctx, p); err != nil {
		return drivekit.NewPathError("rename", p, err)
	}
	return nil
}

// Move implements drivekit.RemoteAPI
func (a *Adapter) Move(ctx context.Context, srcDir, dstDir string, names []string) error {
	for _, name := range names {
		src := path.Join(srcDir, name)
		if err := a.copyTree(ctx, src, path.Join(dstDir, name)); err != nil {
			return drivekit.NewPathError("move", src, err)
		}
		if err := a.deleteTree(ctx, src); err != nil {
			return drivekit.NewPathError("move", src, err)
		}
	}
	return nil
}

// Copy implements drivekit.RemoteAPI
func (a *Adapter) Copy(ctx context.Context, srcDir, dstDir string, names []string) error {
	for _, name := range names {
		src := path.Join(srcDir, name)
		if err := a.copyTree(ctx, src, path.Join(dstDir, name)); err != nil {
			return drivekit.NewPathError("copy", src, err)
		}
	}
	return nil
}

// Remove implements drivekit.RemoteAPI
func (a *Adapter) Remove(ctx context.Context, dir string, names []string) error {
	for _, name := range names {
		p := path.Join(dir, name)
		if err := a.deleteTree(ctx, p); err != nil {
			return drivekit.NewPathError("remove", p, err)
		}
	}
	return nil
}

// Upload implements drivekit.RemoteAPI. S3 needs a sized body, so
// unseekable readers are buffered in memory.
func (a *Adapter) Upload(ctx context.Context, p string, r io.Reader, opts ...drivekit.Option) error {
	var body io.Reader
	var size int64 = -1

	switch rd := r.(type) {
	case *bytes.Reader:
		size = int64(rd.Len())
		body = rd
	case io.ReadSeeker:
		pos, err := rd.Seek(0, io.SeekCurrent)
		if err == nil {
			if end, err := rd.Seek(0, io.SeekEnd); err == nil {
				size = end - pos
				rd.Seek(pos, io.SeekStart)
			}
		}
		body = rd
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return drivekit.NewPathError("upload", p, err)
		}
		size = int64(len(data))
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return mapError("upload", p, err)
	}
	return nil
}

// DownloadURL implements drivekit.RemoteAPI using a presigned GET.
func (a *Adapter) DownloadURL(ctx context.Context, p string) (string, error) {
	return a.SignedURL(ctx, p, a.urlTTL)
}

// SignedURL implements drivekit.CanSignURL
func (a *Adapter) SignedURL(ctx context.Context, p string, expires time.Duration) (string, error) {
	presign := s3.NewPresignClient(a.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	}, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", mapError("download", p, err)
	}
	return req.URL, nil
}

// ListMounts implements drivekit.RemoteAPI. A single bucket is one
// storage; everything lives under the implicit root mount.
func (a *Adapter) ListMounts(ctx context.Context) ([]drivekit.MountPoint, error) {
	return nil, nil
}

// ============================================================================
// Tree Helpers
// ============================================================================

// copyTree copies the object at src, or the whole subtree when src is
// a directory marker, under dst.
func (a *Adapter) copyTree(ctx context.Context, src, dst string) error {
	srcKey := a.key(src)
	dstKey := a.key(dst)

	if copied, err := a.copyObject(ctx, srcKey, dstKey); err != nil {
		return err
	} else if copied {
		return nil
	}

	// Directory subtree: copy every key under the marker.
	found := false
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(srcKey + "/"),
	})
	for paginator.HasMorePages() {
		resp, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range resp.Contents {
			found = true
			rel := strings.TrimPrefix(aws.ToString(obj.Key), srcKey)
			if _, err := a.copyObject(ctx, aws.ToString(obj.Key), dstKey+rel); err != nil {
				return err
			}
		}
	}
	if !found {
		return drivekit.ErrNotExist
	}
	return nil
}

// copyObject copies a single key, reporting false when the source key
// does not exist.
func (a *Adapter) copyObject(ctx context.Context, srcKey, dstKey string) (bool, error) {
	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		CopySource: aws.String(fmt.Sprintf("%s/%s", a.bucket, srcKey)),
		Key:        aws.String(dstKey),
	})
	if err == nil {
		return true, nil
	}
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

// deleteTree removes the object at p and everything under its
// directory marker.
func (a *Adapter) deleteTree(ctx context.Context, p string) error {
	key := a.key(p)

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(key + "/"),
	})
	for paginator.HasMorePages() {
		resp, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range resp.Contents {
			_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

var (
	_ drivekit.RemoteAPI  = (*Adapter)(nil)
	_ drivekit.CanSignURL = (*Adapter)(nil)
)
