// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetGist(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/gists/abc123" {
			t.Errorf("path = %s", request.URL.Path)
		}
		writer.Write([]byte(`{
			"id": "abc123",
			"description": "scratch",
			"files": {
				"notes---todo.md": {"filename": "notes---todo.md", "size": 5, "raw_url": "https://gist.example/raw/1", "content": "hello"},
				"big.log": {"filename": "big.log", "size": 2000000, "truncated": true, "raw_url": "https://gist.example/raw/2", "content": "partial"}
			}
		}`))
	}))
	defer server.Close()

	gist, err := newTestClient(t, server, "").GetGist(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetGist: %v", err)
	}
	if len(gist.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(gist.Files))
	}
	todo := gist.Files["notes---todo.md"]
	if todo.Content == nil || *todo.Content != "hello" || todo.Size != 5 {
		t.Errorf("todo = %+v", todo)
	}
	if !gist.Files["big.log"].Truncated {
		t.Error("big.log not truncated")
	}
}

func TestUpdateGistBatchShape(t *testing.T) {
	var received map[string]map[string]json.RawMessage
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPatch {
			t.Errorf("method = %s", request.Method)
		}
		body, _ := io.ReadAll(request.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("decoding body %s: %v", body, err)
		}
		writer.Write([]byte(`{"id":"abc123","files":{"kept.md":{"filename":"kept.md","size":3}}}`))
	}))
	defer server.Close()

	gist, err := newTestClient(t, server, "token").UpdateGist(context.Background(), "abc123", map[string]GistFileChange{
		"kept.md": {Content: "new"},
		"gone.md": {Delete: true},
	})
	if err != nil {
		t.Fatalf("UpdateGist: %v", err)
	}
	if _, ok := gist.Files["kept.md"]; !ok {
		t.Error("response files not decoded")
	}
	files := received["files"]
	if string(files["gone.md"]) != "null" {
		t.Errorf("deletion encoded as %s, want null", files["gone.md"])
	}
	if string(files["kept.md"]) != `{"content":"new"}` {
		t.Errorf("change encoded as %s", files["kept.md"])
	}
}

func TestCreateGist(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/gists" {
			t.Errorf("%s %s", request.Method, request.URL.Path)
		}
		writer.WriteHeader(http.StatusCreated)
		writer.Write([]byte(`{"id":"fresh","public":false}`))
	}))
	defer server.Close()

	gist, err := newTestClient(t, server, "token").CreateGist(context.Background(), CreateGistRequest{
		Description: "new pad",
		Files:       map[string]GistFileChange{"README.md": {Content: "# pad"}},
	})
	if err != nil {
		t.Fatalf("CreateGist: %v", err)
	}
	if gist.ID != "fresh" {
		t.Errorf("ID = %q", gist.ID)
	}
}
