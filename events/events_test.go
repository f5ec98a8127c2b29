package events

import (
	"net/http"
	"testing"

	"github.com/goliatone/go-identity-sync/core"
)

func TestDecode_UserCreated(t *testing.T) {
	body := []byte(`{
		"type": "user.created",
		"object": "event",
		"data": {
			"id": "u_1",
			"email_addresses": [{"id": "idn_1", "email_address": "a@x.com"}, {"email_address": "b@x.com"}],
			"primary_email_address_id": "idn_1",
			"first_name": "A",
			"last_name": "B",
			"image_url": "img"
		}
	}`)

	event, err := Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	created, ok := event.(UserCreated)
	if !ok {
		t.Fatalf("expected UserCreated variant, got %T", event)
	}
	if created.EventType() != TypeUserCreated || created.SubjectID() != "u_1" {
		t.Fatalf("unexpected discriminator %q / %q", created.EventType(), created.SubjectID())
	}
	if created.Email() != "a@x.com" {
		t.Fatalf("expected first email address, got %q", created.Email())
	}
	if created.DisplayName() != "A B" {
		t.Fatalf("expected display name A B, got %q", created.DisplayName())
	}
	if created.ImageURL != "img" || created.PrimaryEmailAddressID != "idn_1" {
		t.Fatalf("unexpected optional fields %#v", created)
	}
}

func TestUserCreated_DisplayNameTrims(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{first: "A", last: "", want: "A"},
		{first: "", last: "B", want: "B"},
		{first: "", last: "", want: ""},
		{first: "Ada", last: "Lovelace", want: "Ada Lovelace"},
		{first: " A ", last: " B ", want: "A   B"},
	}
	for _, tc := range cases {
		got := UserCreated{FirstName: tc.first, LastName: tc.last}.DisplayName()
		if got != tc.want {
			t.Fatalf("DisplayName(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}

func TestDecode_NullNamesBecomeEmpty(t *testing.T) {
	event, err := Decode([]byte(`{"type":"user.created","data":{"id":"u_2","email_addresses":[{"email_address":"c@x.com"}],"first_name":"A","last_name":null,"image_url":null}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	created := event.(UserCreated)
	if created.DisplayName() != "A" {
		t.Fatalf("expected null last name to be dropped, got %q", created.DisplayName())
	}
	if created.ImageURL != "" {
		t.Fatalf("expected empty image url, got %q", created.ImageURL)
	}
}

func TestDecode_KeepsInnerNameWhitespace(t *testing.T) {
	event, err := Decode([]byte(`{"type":"user.created","data":{"id":"u_3","email_addresses":[{"email_address":"d@x.com"}],"first_name":"A ","last_name":" B"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := event.(UserCreated).DisplayName(); got != "A   B" {
		t.Fatalf("expected only the joined name to be trimmed, got %q", got)
	}
}

func TestDecode_UnhandledTypes(t *testing.T) {
	event, err := Decode([]byte(`{"type":"session.created","data":{"id":"sess_1","user_id":"u_1"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	unhandled, ok := event.(Unhandled)
	if !ok {
		t.Fatalf("expected Unhandled variant, got %T", event)
	}
	if unhandled.EventType() != "session.created" || unhandled.SubjectID() != "sess_1" {
		t.Fatalf("unexpected unhandled event %#v", unhandled)
	}

	event, err = Decode([]byte(`{"type":"user.deleted"}`))
	if err != nil {
		t.Fatalf("decode without data: %v", err)
	}
	if event.EventType() != TypeUserDeleted || event.SubjectID() != "" {
		t.Fatalf("unexpected event %#v", event)
	}
}

func TestDecode_RejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"empty body":          ``,
		"not json":            `{"type":`,
		"missing type":        `{"data":{"id":"u_1"}}`,
		"user without data":   `{"type":"user.created"}`,
		"user without id":     `{"type":"user.created","data":{"email_addresses":[{"email_address":"a@x.com"}]}}`,
		"empty email list":    `{"type":"user.created","data":{"id":"u_1","email_addresses":[]}}`,
		"blank first email":   `{"type":"user.created","data":{"id":"u_1","email_addresses":[{"email_address":" "}]}}`,
		"wrong shaped emails": `{"type":"user.created","data":{"id":"u_1","email_addresses":"a@x.com"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			if err == nil {
				t.Fatalf("expected decode error")
			}
			if !core.HasTextCode(err, core.ErrorPayloadInvalid) {
				t.Fatalf("expected payload text code, got %v", err)
			}
			if core.StatusCode(err) != http.StatusBadRequest {
				t.Fatalf("expected 400 mapping, got %d", core.StatusCode(err))
			}
		})
	}
}
