package convertguru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"convertmcp/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestPostBinary_SendsHeadersAndBody(t *testing.T) {
	var (
		gotPath  string
		gotKey   string
		gotCache string
		gotBody  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		gotCache = r.Header.Get("cache-control")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("Plain text"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 0)
	status, text, err := client.PostBinary(context.Background(), PathDetectFileType, []byte{0x01, 0xFE, 0x02})
	if err != nil {
		t.Fatalf("PostBinary failed: %v", err)
	}
	if status != http.StatusOK || text != "Plain text" {
		t.Fatalf("unexpected response: %d %q", status, text)
	}
	if gotPath != PathDetectFileType {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("unexpected api-key header: %q", gotKey)
	}
	if gotCache != "no-cache" {
		t.Fatalf("unexpected cache-control header: %q", gotCache)
	}
	if !bytes.Equal(gotBody, []byte{0x01, 0xFE, 0x02}) {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestPostBinary_EmptyKeyStillSendsHeader(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Api-Key"]
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("missing key"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 0)
	status, text, err := client.PostBinary(context.Background(), PathDetectFileType, nil)
	if err != nil {
		t.Fatalf("PostBinary failed: %v", err)
	}
	if status != http.StatusUnauthorized || text != "missing key" {
		t.Fatalf("unexpected response: %d %q", status, text)
	}
	if !present {
		t.Fatal("expected api-key header to be sent even when empty")
	}
}

func TestPostMultipart_FileField(t *testing.T) {
	var (
		gotField    string
		gotFilename string
		gotData     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("parse content type: %v", err)
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		part, err := reader.NextPart()
		if err != nil {
			t.Errorf("next part: %v", err)
			return
		}
		gotField = part.FormName()
		gotFilename = part.FileName()
		data, _ := io.ReadAll(part)
		gotData = string(data)
		_, _ = w.Write([]byte(`{"Filename":"a_123.txt"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 0)
	status, text, err := client.PostMultipart(context.Background(), PathUpload, UploadField, []byte("0123456789"), "a.txt")
	if err != nil {
		t.Fatalf("PostMultipart failed: %v", err)
	}
	if status != http.StatusOK || text != `{"Filename":"a_123.txt"}` {
		t.Fatalf("unexpected response: %d %q", status, text)
	}
	if gotField != "file" || gotFilename != "a.txt" || gotData != "0123456789" {
		t.Fatalf("unexpected part: field=%q filename=%q data=%q", gotField, gotFilename, gotData)
	}
}

func TestPostJSON_SetsContentType(t *testing.T) {
	var (
		gotType string
		gotReq  model.ConversionRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(StatusGatewayTimeout)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 0)
	status, _, err := client.PostJSON(context.Background(), PathConvert, model.ConversionRequest{Filename: "a_123.txt", ExtOut: "pdf"})
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if status != StatusGatewayTimeout {
		t.Fatalf("unexpected status: %d", status)
	}
	if gotType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotType)
	}
	if gotReq.Filename != "a_123.txt" || gotReq.ExtOut != "pdf" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestTransportFailureIsTransportError(t *testing.T) {
	client := NewClient("http://convert.invalid", "k", 0)
	client.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}

	_, _, err := client.PostJSON(context.Background(), PathConvert, map[string]string{})
	var toolErr *model.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %T (%v)", err, err)
	}
	if toolErr.Kind != model.KindTransport {
		t.Fatalf("unexpected kind: %s", toolErr.Kind)
	}
	if !strings.HasPrefix(toolErr.Message, "Error making API request: ") || !strings.Contains(toolErr.Message, "connection refused") {
		t.Fatalf("unexpected message: %q", toolErr.Message)
	}
	if toolErr.Cause == nil {
		t.Fatal("expected cause to be kept")
	}
}

func TestGetStream_CopiesBody(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*DownloadChunkSize+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 0)
	var sink bytes.Buffer
	status, text, err := client.GetStream(context.Background(), srv.URL+"/dl/file.pdf", &sink)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	if status != http.StatusOK || text != "" {
		t.Fatalf("unexpected result: %d %q", status, text)
	}
	if !bytes.Equal(sink.Bytes(), payload) {
		t.Fatalf("unexpected sink size %d", sink.Len())
	}
}

func TestGetStream_NonOKWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such file"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 0)
	var sink bytes.Buffer
	status, text, err := client.GetStream(context.Background(), srv.URL+"/dl/missing.pdf", &sink)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	if status != http.StatusNotFound || text != "no such file" {
		t.Fatalf("unexpected result: %d %q", status, text)
	}
	if sink.Len() != 0 {
		t.Fatalf("sink should be empty, got %d bytes", sink.Len())
	}
}

func TestGetStream_APIKeyOnlyForSameOrigin(t *testing.T) {
	var gotKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeys = append(gotKeys, r.Header.Get("api-key"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	same := NewClient(srv.URL, "secret", 0)
	if _, _, err := same.GetStream(context.Background(), srv.URL+"/dl/a.pdf", io.Discard); err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	foreign := NewClient("https://convert.example", "secret", 0)
	if _, _, err := foreign.GetStream(context.Background(), srv.URL+"/dl/a.pdf", io.Discard); err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	if len(gotKeys) != 2 || gotKeys[0] != "secret" || gotKeys[1] != "" {
		t.Fatalf("unexpected api-key headers: %q", gotKeys)
	}
}

func TestResolveURL(t *testing.T) {
	client := NewClient("https://convert.guru/", "", 0)
	if got := client.ResolveURL("/dl/a_123.pdf"); got != "https://convert.guru/dl/a_123.pdf" {
		t.Fatalf("unexpected root-relative resolution: %q", got)
	}
	if got := client.ResolveURL("https://cdn.example/a.pdf"); got != "https://cdn.example/a.pdf" {
		t.Fatalf("absolute URL should be unchanged: %q", got)
	}
}

func TestNormalizeConvertBody(t *testing.T) {
	cases := []struct {
		status      int
		body        string
		synthesized bool
		contains    string
	}{
		{status: 200, body: `{"file":{}}`, synthesized: false, contains: `{"file":{}}`},
		{status: 400, body: `{"error":"unsupported format"}`, synthesized: false, contains: "unsupported format"},
		{status: 524, body: "<html>", synthesized: true, contains: "Error HTTP 524"},
		{status: 500, body: "boom", synthesized: true, contains: "Error HTTP 500"},
		{status: 503, body: "", synthesized: true, contains: "Error HTTP 503."},
	}
	for _, tc := range cases {
		got, synthesized := NormalizeConvertBody(tc.status, tc.body)
		if synthesized != tc.synthesized {
			t.Fatalf("status %d: synthesized=%t", tc.status, synthesized)
		}
		if !strings.Contains(got, tc.contains) {
			t.Fatalf("status %d: %q does not contain %q", tc.status, got, tc.contains)
		}
		if synthesized {
			var parsed map[string]string
			if err := json.Unmarshal([]byte(got), &parsed); err != nil {
				t.Fatalf("status %d: synthesized body is not JSON: %v", tc.status, err)
			}
			if parsed["error"] == "" {
				t.Fatalf("status %d: synthesized body has no error field", tc.status)
			}
		}
	}
}
