// Package rest implements the drivekit RemoteAPI against JSON drive
// services of the alist/openlist family.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gobeaver/drivekit"
)

// DefaultTimeout bounds one API round trip unless the caller supplies
// a client of their own.
const DefaultTimeout = 30 * time.Second

// Adapter provides a REST implementation of drivekit.RemoteAPI
type Adapter struct {
	base   string
	token  string
	client *http.Client
}

// AdapterOption is a function that configures the Adapter
type AdapterOption func(*Adapter)

// WithToken sets the authorization token sent with every request.
func WithToken(token string) AdapterOption {
	return func(a *Adapter) {
		a.token = token
	}
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) AdapterOption {
	return func(a *Adapter) {
		a.client = client
	}
}

// New creates a new REST adapter for the service at baseURL.
func New(baseURL string, options ...AdapterOption) (*Adapter, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	adapter := &Adapter{
		base:   strings.TrimRight(u.String(), "/"),
		client: &http.Client{Timeout: DefaultTimeout},
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter, nil
}

// Login exchanges credentials for a token and installs it on the
// adapter. Services that issue long-lived tokens do not need this.
func (a *Adapter) Login(ctx context.Context, username, password string) error {
	var data struct {
		Token string `json:"token"`
	}
	payload := map[string]any{"username": username, "password": password}
	if err := a.call(ctx, http.MethodPost, "/api/auth/login", payload, &data); err != nil {
		return err
	}
	a.token = data.Token
	return nil
}

// ============================================================================
// Wire Envelope
// ============================================================================

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs one JSON round trip and decodes the data field into out.
func (a *Adapter) call(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", drivekit.ErrProtocol, endpoint, err)
	}
	if err := mapError(env.Code, env.Message); err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decoding %s data: %v", drivekit.ErrProtocol, endpoint, err)
		}
	}
	return nil
}

// mapError converts the service's envelope codes and message suffixes
// into the package sentinel errors.
func mapError(code int, message string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%w: %s", drivekit.ErrPermission, message)
	case code == 500 && (strings.HasSuffix(message, "object not found") ||
		strings.HasPrefix(message, "failed get storage: storage not found")):
		return fmt.Errorf("%w: %s", drivekit.ErrNotExist, message)
	case code == 500 && strings.HasSuffix(message, "not a folder"):
		return fmt.Errorf("%w: %s", drivekit.ErrNotDir, message)
	case code == 500 && strings.HasSuffix(message, "not a file"):
		return fmt.Errorf("%w: %s", drivekit.ErrIsDir, message)
	case code == 500 && strings.HasSuffix(message, "file exists"):
		return fmt.Errorf("%w: %s", drivekit.ErrExist, message)
	case code == 500 && strings.HasPrefix(message, "failed get "):
		return fmt.Errorf("%w: %s", drivekit.ErrPermission, message)
	}
	return fmt.Errorf("%w: code %d: %s", drivekit.ErrProtocol, code, message)
}

// ============================================================================
// Wire Types
// ============================================================================

type wireItem struct {
	Name     string            `json:"name"`
	Size     int64             `json:"size"`
	IsDir    bool              `json:"is_dir"`
	Modified string            `json:"modified"`
	Sign     string            `json:"sign"`
	Type     int               `json:"type"`
	RawURL   string            `json:"raw_url"`
	Provider string            `json:"provider"`
	HashInfo map[string]string `json:"hash_info"`
}

func (w *wireItem) attributes(path string) *drivekit.Attributes {
	attrs := &drivekit.Attributes{
		Name:        w.Name,
		Path:        path,
		Size:        w.Size,
		IsDir:       w.IsDir,
		DownloadURL: w.RawURL,
	}
	if t, err := time.Parse(time.RFC3339, w.Modified); err == nil {
		attrs.ModTime = t
	}
	extra := make(map[string]string)
	if w.Sign != "" {
		extra["sign"] = w.Sign
	}
	if w.Provider != "" {
		extra["provider"] = w.Provider
	}
	for algo, sum := range w.HashInfo {
		extra[strings.ToLower(algo)] = sum
	}
	if len(extra) > 0 {
		attrs.Extra = extra
	}
	return attrs
}

func forwarded(opts []drivekit.Option) *drivekit.Options {
	return drivekit.ApplyOptions(opts...)
}

// ============================================================================
// RemoteAPI Implementation
// ============================================================================

// Info implements drivekit.RemoteAPI
func (a *Adapter) Info(ctx context.Context, path string, opts ...drivekit.Option) (*drivekit.Attributes, error) {
	o := forwarded(opts)
	var item wireItem
	payload := map[string]any{"path": path, "password": o.Password, "refresh": o.Refresh}
	if err := a.call(ctx, http.MethodPost, "/api/fs/get", payload, &item); err != nil {
		return nil, drivekit.NewPathError("info", path, err)
	}
	return item.attributes(path), nil
}

// List implements drivekit.RemoteAPI
func (a *Adapter) List(ctx context.Context, dir string, page, perPage int, opts ...drivekit.Option) (*drivekit.ListResult, error) {
	o := forwarded(opts)
	var data struct {
		Content []wireItem `json:"content"`
		Total   int        `json:"total"`
	}
	payload := map[string]any{
		"path":     dir,
		"password": o.Password,
		"page":     page,
		"per_page": perPage,
		"refresh":  o.Refresh,
	}
	if err := a.call(ctx, http.MethodPost, "/api/fs/list", payload, &data); err != nil {
		return nil, drivekit.NewPathError("list", dir, err)
	}
	result := &drivekit.ListResult{Total: data.Total}
	prefix := strings.TrimRight(dir, "/")
	for i := range data.Content {
		item := &data.Content[i]
		result.Items = append(result.Items, *item.attributes(prefix+"/"+item.Name))
	}
	return result, nil
}

// Mkdir implements drivekit.RemoteAPI
func (a *Adapter) Mkdir(ctx context.Context, path string) error {
	payload := map[string]any{"path": path}
	if err := a.call(ctx, http.MethodPost, "/api/fs/mkdir", payload, nil); err != nil {
		return drivekit.NewPathError("mkdir", path, err)
	}
	return nil
}

// Rename implements drivekit.RemoteAPI
func (a *Adapter) Rename(ctx context.Context, path, newName string) error {
	payload := map[string]any{"path": path, "name": newName}
	if err := a.call(ctx, http.MethodPost, "/api/fs/rename", payload, nil); err != nil {
		return drivekit.NewPathError("rename", path, err)
	}
	return nil
}

// Move implements drivekit.RemoteAPI
func (a *Adapter) Move(ctx context.Context, srcDir, dstDir string, names []string) error {
	payload := map[string]any{"src_dir": srcDir, "dst_dir": dstDir, "names": names}
	if err := a.call(ctx, http.MethodPost, "/api/fs/move", payload, nil); err != nil {
		return drivekit.NewPathError("move", srcDir, err)
	}
	return nil
}

// Copy implements drivekit.RemoteAPI
func (a *Adapter) Copy(ctx context.Context, srcDir, dstDir string, names []string) error {
	payload := map[string]any{"src_dir": srcDir, "dst_dir": dstDir, "names": names}
	if err := a.call(ctx, http.MethodPost, "/api/fs/copy", payload, nil); err != nil {
		return drivekit.NewPathError("copy", srcDir, err)
	}
	return nil
}

// Remove implements drivekit.RemoteAPI
func (a *Adapter) Remove(ctx context.Context, dir string, names []string) error {
	payload := map[string]any{"dir": dir, "names": names}
	if err := a.call(ctx, http.MethodPost, "/api/fs/remove", payload, nil); err != nil {
		return drivekit.NewPathError("remove", dir, err)
	}
	return nil
}

// Upload implements drivekit.RemoteAPI. The service takes the target
// path in a header and the raw content as the request body.
func (a *Adapter) Upload(ctx context.Context, path string, r io.Reader, opts ...drivekit.Option) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.base+"/api/fs/put", r)
	if err != nil {
		return drivekit.NewPathError("upload", path, err)
	}
	req.Header.Set("File-Path", url.PathEscape(path))
	req.Header.Set("Content-Type", "application/octet-stream")
	if a.token != "" {
		req.Header.Set("Authorization", a.token)
	}
	if o := forwarded(opts); o.Password != "" {
		req.Header.Set("Password", o.Password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return drivekit.NewPathError("upload", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return drivekit.NewPathError("upload", path,
			fmt.Errorf("%w: decoding put response: %v", drivekit.ErrProtocol, err))
	}
	if err := mapError(env.Code, env.Message); err != nil {
		return drivekit.NewPathError("upload", path, err)
	}
	return nil
}

// DownloadURL implements drivekit.RemoteAPI
func (a *Adapter) DownloadURL(ctx context.Context, path string) (string, error) {
	attrs, err := a.Info(ctx, path)
	if err != nil {
		return "", err
	}
	if attrs.IsDir {
		return "", drivekit.NewPathError("download", path, drivekit.ErrIsDir)
	}
	if attrs.DownloadURL != "" {
		return attrs.DownloadURL, nil
	}
	// Older services omit raw_url from metadata; fall back to the
	// public download route.
	u := a.base + "/d" + escapePath(path)
	if sign := attrs.Extra["sign"]; sign != "" {
		u += "?sign=" + url.QueryEscape(sign)
	}
	return u, nil
}

// escapePath percent-encodes each path segment, keeping the slashes.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

type wireStorage struct {
	ID        int    `json:"id"`
	MountPath string `json:"mount_path"`
	Driver    string `json:"driver"`
	Disabled  bool   `json:"disabled"`
}

// listStorages fetches the raw storage table. Requires an admin token.
func (a *Adapter) listStorages(ctx context.Context) ([]wireStorage, error) {
	var data struct {
		Content []wireStorage `json:"content"`
		Total   int           `json:"total"`
	}
	err := a.call(ctx, http.MethodGet, "/api/admin/storage/list?page=1&per_page=0", nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Content, nil
}

// ListMounts implements drivekit.RemoteAPI. Non-admin tokens cannot
// read the storage table; they get an empty one, which places every
// path under the implicit root mount.
func (a *Adapter) ListMounts(ctx context.Context) ([]drivekit.MountPoint, error) {
	storages, err := a.listStorages(ctx)
	if err != nil {
		if drivekit.IsPermission(err) {
			return nil, nil
		}
		return nil, err
	}
	mounts := make([]drivekit.MountPoint, 0, len(storages))
	for _, s := range storages {
		if s.Disabled {
			continue
		}
		mounts = append(mounts, drivekit.MountPoint{Path: s.MountPath, Backend: s.Driver})
	}
	return mounts, nil
}

// RemoveMount implements drivekit.CanRemoveMount. Requires an admin
// token.
func (a *Adapter) RemoveMount(ctx context.Context, mountPath string) error {
	storages, err := a.listStorages(ctx)
	if err != nil {
		return err
	}
	for _, s := range storages {
		if s.MountPath == mountPath {
			endpoint := fmt.Sprintf("/api/admin/storage/delete?id=%d", s.ID)
			if err := a.call(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
				return drivekit.NewPathError("remove mount", mountPath, err)
			}
			return nil
		}
	}
	return drivekit.NewPathError("remove mount", mountPath, drivekit.ErrNotExist)
}

var (
	_ drivekit.RemoteAPI      = (*Adapter)(nil)
	_ drivekit.CanRemoveMount = (*Adapter)(nil)
)
