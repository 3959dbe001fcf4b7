package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// FileInfo is one entry of the listing.
type FileInfo struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	MimeType     string    `json:"mimeType"`
}

// Download is an open file body. The caller closes Body.
type Download struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New builds a client for the server at baseURL, e.g. "http://localhost:3000".
// A nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var out messageResponse
	err := c.doJSON(ctx, http.MethodPost, "/register", false, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	return out.Message, err
}

// Login returns a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/login", false, map[string]string{
		"username": username,
		"password": password,
	}, &out)
	return out.Token, err
}

// Upload streams r as the multipart field "file" named name and returns the
// stored filename.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", true, pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Message  string `json:"message"`
		Filename string `json:"filename"`
	}
	if err := c.do(req, &out); err != nil {
		pr.Close()
		return "", err
	}
	return out.Filename, nil
}

func (c *Client) List(ctx context.Context) ([]FileInfo, error) {
	var out struct {
		Files []FileInfo `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/uploads", true, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Get opens a stored file. With original set it asks for the download
// flavour, which names the attachment after the uploaded name.
func (c *Client) Get(ctx context.Context, filename string, original bool) (*Download, error) {
	route := "/api/uploads/"
	if original {
		route = "/api/download/"
	}

	req, err := c.newRequest(ctx, http.MethodGet, route+url.PathEscape(filename), true, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	d := &Download{
		Body:        resp.Body,
		Filename:    filename,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		d.Filename = params["filename"]
	}
	return d, nil
}

func (c *Client) Rename(ctx context.Context, oldName, newName string) (string, error) {
	var out messageResponse
	err := c.doJSON(ctx, http.MethodPut, "/api/rename", true, map[string]string{
		"oldFilename": oldName,
		"newFilename": newName,
	}, &out)
	return out.Message, err
}

func (c *Client) Delete(ctx context.Context, filename string) (string, error) {
	var out messageResponse
	err := c.doJSON(ctx, http.MethodDelete, "/api/delete", true, map[string]string{
		"filename": filename,
	}, &out)
	return out.Message, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, authed bool, body io.Reader) (*http.Request, error) {
	if authed && c.token == "" {
		return nil, ErrNoToken
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, authed bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, authed, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}
