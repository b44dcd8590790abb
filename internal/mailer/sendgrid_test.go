package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendGrid_SendsReportWithAttachment(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg := NewSendGrid(srv.URL, "secret", "noreply@example.com")
	msg := ReportMessage("ops@example.com", "ev1", []byte("a,b\n1,2\n"))
	if err := sg.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.From.Email != "noreply@example.com" || got.Personalizations[0].To[0].Email != "ops@example.com" {
		t.Fatalf("unexpected addressing: %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "reportev1.csv" {
		t.Fatalf("unexpected attachments: %+v", got.Attachments)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Attachments[0].Content)
	if err != nil || string(raw) != "a,b\n1,2\n" {
		t.Fatalf("attachment content mismatch: %q %v", raw, err)
	}
}

func TestSendGrid_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sg := NewSendGrid(srv.URL, "wrong", "noreply@example.com")
	err := sg.Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestSendGrid_RequiresRecipientAndBody(t *testing.T) {
	sg := NewSendGrid("http://127.0.0.1:1", "t", "f@example.com")

	if err := sg.Send(context.Background(), Message{Subject: "s", Text: "t"}); err == nil {
		t.Fatal("expected missing recipient error")
	}
	if err := sg.Send(context.Background(), Message{To: "a@example.com"}); err == nil {
		t.Fatal("expected missing body error")
	}
}

func TestConfirmationMessage_EscapesHTML(t *testing.T) {
	msg, err := ConfirmationMessage(Confirmation{
		To: "a@example.com", Name: "<Ada>", EventName: "GopherCon", ReferenceID: "ref-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(msg.HTML, "<Ada>") || !strings.Contains(msg.HTML, "&lt;Ada&gt;") {
		t.Fatalf("name not escaped: %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "GopherCon") || !strings.Contains(msg.HTML, "ref-1") {
		t.Fatalf("missing fields: %s", msg.HTML)
	}
}
