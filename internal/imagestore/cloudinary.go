package imagestore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const cloudinaryAPI = "https://api.cloudinary.com/v1_1"

// Cloudinary uploads through Cloudinary's signed upload API.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string

	// BaseURL overrides the API root; empty means the public API.
	BaseURL string
	Client  *http.Client
}

// cloudinaryResponse covers both the upload and destroy replies.
type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// sign computes Cloudinary's request signature: the hex SHA-1 of the
// parameters sorted by name, joined as k=v pairs with '&', followed by the
// API secret.
func sign(params map[string]string, secret string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, k := range names {
		pairs[i] = k + "=" + params[k]
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func (c *Cloudinary) endpoint(action string) string {
	base := c.BaseURL
	if base == "" {
		base = cloudinaryAPI
	}
	return fmt.Sprintf("%s/%s/image/%s", strings.TrimRight(base, "/"), c.CloudName, action)
}

func (c *Cloudinary) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *Cloudinary) signedParams(params map[string]string) map[string]string {
	params["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	params["signature"] = sign(params, c.APISecret)
	params["api_key"] = c.APIKey
	return params
}

func (c *Cloudinary) Put(ctx context.Context, data []byte, mime string) (Ref, error) {
	params := map[string]string{"public_id": newKey()}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params = c.signedParams(params)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return Ref{}, fmt.Errorf("writing upload field: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", params["public_id"]+".jpg")
	if err != nil {
		return Ref{}, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Ref{}, fmt.Errorf("writing upload part: %w", err)
	}
	if err := w.Close(); err != nil {
		return Ref{}, fmt.Errorf("closing upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), &body)
	if err != nil {
		return Ref{}, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := c.do(req)
	if err != nil {
		return Ref{}, fmt.Errorf("uploading to cloudinary: %w", err)
	}
	if res.SecureURL == "" || res.PublicID == "" {
		return Ref{}, fmt.Errorf("uploading to cloudinary: incomplete response")
	}
	return Ref{URL: res.SecureURL, Key: res.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, key string) error {
	params := c.signedParams(map[string]string{"public_id": key})

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.do(req)
	if err != nil {
		return fmt.Errorf("deleting from cloudinary: %w", err)
	}
	switch res.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("deleting from cloudinary: result %q", res.Result)
	}
}

func (c *Cloudinary) do(req *http.Request) (*cloudinaryResponse, error) {
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var res cloudinaryResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("status %d: decoding response: %w", resp.StatusCode, err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, res.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return &res, nil
}
