// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetTreeConditional(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/repos/octo/wiki/git/trees/main" || request.URL.Query().Get("recursive") != "1" {
			t.Errorf("url = %s", request.URL)
		}
		if request.Header.Get("If-None-Match") == `"v1"` {
			writer.WriteHeader(http.StatusNotModified)
			return
		}
		writer.Header().Set("ETag", `"v1"`)
		writer.Write([]byte(`{"sha":"t1","tree":[
			{"path":"Home.md","mode":"100644","type":"blob","sha":"b1","size":12},
			{"path":"pages","mode":"040000","type":"tree","sha":"t2"}
		]}`))
	}))
	defer server.Close()
	client := newTestClient(t, server, "")

	tree, etag, err := client.GetTree(context.Background(), "octo", "wiki", "main", "")
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if etag != `"v1"` || tree.SHA != "t1" || len(tree.Entries) != 2 {
		t.Fatalf("tree = %+v, etag = %q", tree, etag)
	}
	if tree.Entries[0].Size != 12 || tree.Entries[1].Type != "tree" {
		t.Errorf("entries = %+v", tree.Entries)
	}

	tree, etag, err = client.GetTree(context.Background(), "octo", "wiki", "main", `"v1"`)
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("conditional GetTree error = %v, want ErrNotModified", err)
	}
	if tree != nil || etag != `"v1"` {
		t.Errorf("not-modified result = %v, %q", tree, etag)
	}
}

func TestGetBlobDecodesWrappedBase64(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(`{"sha":"b1","size":11,"encoding":"base64","content":"aGVsbG8g\nd29ybGQ=\n"}`))
	}))
	defer server.Close()

	blob, err := newTestClient(t, server, "").GetBlob(context.Background(), "octo", "wiki", "b1")
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	content, err := blob.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(content) != "hello world" {
		t.Errorf("content = %q", content)
	}
}

func TestCreateTreeEncodesDeletionAsNullSHA(t *testing.T) {
	var received struct {
		BaseTree string                       `json:"base_tree"`
		Tree     []map[string]json.RawMessage `json:"tree"`
	}
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("decoding %s: %v", body, err)
		}
		writer.WriteHeader(http.StatusCreated)
		writer.Write([]byte(`{"sha":"t9"}`))
	}))
	defer server.Close()

	tree, err := newTestClient(t, server, "token").CreateTree(context.Background(), "octo", "wiki", CreateTreeRequest{
		BaseTree: "t1",
		Entries: []CreateTreeEntry{
			{Path: "new/Home.md", SHA: "b1"},
			{Path: "Home.md", Delete: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	if tree.SHA != "t9" || received.BaseTree != "t1" || len(received.Tree) != 2 {
		t.Fatalf("tree = %+v, received = %+v", tree, received)
	}
	if string(received.Tree[0]["sha"]) != `"b1"` || string(received.Tree[0]["mode"]) != `"100644"` {
		t.Errorf("move entry = %v", received.Tree[0])
	}
	if string(received.Tree[1]["sha"]) != "null" {
		t.Errorf("deletion sha = %s, want null", received.Tree[1]["sha"])
	}
}

func TestCommitAndMoveRef(t *testing.T) {
	var refBody map[string]any
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method + " " + request.URL.Path {
		case "GET /repos/octo/wiki/git/ref/heads/main":
			writer.Write([]byte(`{"ref":"refs/heads/main","object":{"sha":"c1","type":"commit"}}`))
		case "GET /repos/octo/wiki/git/commits/c1":
			writer.Write([]byte(`{"sha":"c1","tree":{"sha":"t1"}}`))
		case "POST /repos/octo/wiki/git/commits":
			writer.Write([]byte(`{"sha":"c2","tree":{"sha":"t2"},"parents":[{"sha":"c1"}]}`))
		case "PATCH /repos/octo/wiki/git/refs/heads/main":
			body, _ := io.ReadAll(request.Body)
			json.Unmarshal(body, &refBody)
			writer.Write([]byte(`{"ref":"refs/heads/main","object":{"sha":"c2"}}`))
		default:
			t.Errorf("unexpected %s %s", request.Method, request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	ctx := context.Background()
	client := newTestClient(t, server, "token")

	ref, err := client.GetRef(ctx, "octo", "wiki", "heads/main")
	if err != nil {
		t.Fatal(err)
	}
	head, err := client.GetCommit(ctx, "octo", "wiki", ref.Object.SHA)
	if err != nil {
		t.Fatal(err)
	}
	commit, err := client.CreateCommit(ctx, "octo", "wiki", CreateCommitRequest{Message: "m", Tree: "t2", Parents: []string{head.SHA}})
	if err != nil {
		t.Fatal(err)
	}
	if commit.Parents[0].SHA != "c1" {
		t.Errorf("parents = %+v", commit.Parents)
	}
	if _, err := client.UpdateRef(ctx, "octo", "wiki", "heads/main", commit.SHA, false); err != nil {
		t.Fatal(err)
	}
	if refBody["sha"] != "c2" || refBody["force"] != false {
		t.Errorf("ref body = %v", refBody)
	}
}

func TestPutContents(t *testing.T) {
	var received map[string]string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/repos/octo/wiki/contents/pages/My Page.md" {
			t.Errorf("path = %q", request.URL.Path)
		}
		body, _ := io.ReadAll(request.Body)
		json.Unmarshal(body, &received)
		if received["sha"] == "stale" {
			writer.WriteHeader(http.StatusConflict)
			writer.Write([]byte(`{"message":"pages/My Page.md does not match b0"}`))
			return
		}
		writer.Write([]byte(`{"content":{"path":"pages/My Page.md","sha":"b2","size":3},"commit":{"sha":"c5"}}`))
	}))
	defer server.Close()
	client := newTestClient(t, server, "token")

	response, err := client.PutContents(context.Background(), "octo", "wiki", "pages/My Page.md", UpdateFileRequest{
		Message: "Update pages/My Page.md",
		Content: []byte("new"),
		SHA:     "b1",
		Branch:  "main",
	})
	if err != nil {
		t.Fatalf("PutContents: %v", err)
	}
	if response.Content.SHA != "b2" || response.Commit.SHA != "c5" {
		t.Errorf("response = %+v", response)
	}
	if received["content"] != "bmV3" || received["branch"] != "main" {
		t.Errorf("request = %v", received)
	}

	_, err = client.PutContents(context.Background(), "octo", "wiki", "pages/My Page.md", UpdateFileRequest{
		Message: "Update", Content: []byte("x"), SHA: "stale",
	})
	if !IsShaMismatch(err) {
		t.Errorf("stale sha error = %v, want sha mismatch", err)
	}
}

func TestGetContentsNotFound(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("ref") != "dev" {
			t.Errorf("ref = %q", request.URL.Query().Get("ref"))
		}
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server, "").GetContents(context.Background(), "octo", "wiki", "gone.md", "dev")
	if !IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}
