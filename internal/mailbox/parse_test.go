package mailbox

import (
	"strings"
	"testing"
)

func TestParseMessagePlain(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: Jane Smith <Jane@Example.com>",
		"To: sam@vendor.com",
		"Subject: Re: Quick question",
		"Message-ID: <reply-1@example.com>",
		"In-Reply-To: <orig-1@vendor.com>",
		"References: <orig-0@vendor.com> <orig-1@vendor.com>",
		"Date: Mon, 02 Feb 2026 15:04:05 -0500",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"Sounds interesting, send me more details.",
		"",
		"On Mon, Feb 2, 2026 at 9:00 AM Sam Seller <sam@vendor.com> wrote:",
		"> Hi Jane, quick question about Acme.",
	}, "\r\n"))

	msg, err := ParseMessage(42, raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.UID != 42 {
		t.Errorf("uid = %d", msg.UID)
	}
	if msg.From != "jane@example.com" {
		t.Errorf("from = %q, want lowercased address", msg.From)
	}
	if msg.MessageID != "<reply-1@example.com>" {
		t.Errorf("message-id = %q", msg.MessageID)
	}
	if len(msg.InReplyTo) != 1 || msg.InReplyTo[0] != "<orig-1@vendor.com>" {
		t.Errorf("in-reply-to = %v", msg.InReplyTo)
	}
	if len(msg.References) != 2 {
		t.Errorf("references = %v", msg.References)
	}
	if msg.Body != "Sounds interesting, send me more details." {
		t.Errorf("body = %q, quoted history should be stripped", msg.Body)
	}
}

func TestParseMessageMultipart(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: jane@example.com",
		"Subject: Re: Hello",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="bnd1"`,
		"",
		"--bnd1",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Yes, let=E2=80=99s talk.",
		"--bnd1",
		"Content-Type: text/html; charset=UTF-8",
		"",
		"<p>Yes, let&#8217;s talk.</p>",
		"--bnd1--",
	}, "\r\n"))

	msg, err := ParseMessage(7, raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Body != "Yes, let’s talk." {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: jane@example.com",
		"Subject: Re: Hello",
		"Content-Type: text/html; charset=UTF-8",
		"",
		"<div>Not interested, thanks.<br>Please remove me.</div>",
	}, "\r\n"))

	msg, err := ParseMessage(8, raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !strings.Contains(msg.Body, "Not interested, thanks.") {
		t.Errorf("body = %q", msg.Body)
	}
	if strings.Contains(msg.Body, "<") {
		t.Errorf("body = %q, tags should be stripped", msg.Body)
	}
}

func TestParseMessageEncodedSubject(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: jane@example.com",
		"Subject: =?UTF-8?Q?Re=3A_r=C3=A9union?=",
		"Content-Type: text/plain",
		"",
		"ok",
	}, "\r\n"))

	msg, err := ParseMessage(9, raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Subject != "Re: réunion" {
		t.Errorf("subject = %q", msg.Subject)
	}
}

func TestCleanReplyBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"gmail attribution",
			"Sure thing.\n\nOn Tue, Feb 3, 2026 at 1:00 PM Sam <sam@vendor.com> wrote:\n> original",
			"Sure thing.",
		},
		{
			"outlook separator",
			"Will do.\n\n-----Original Message-----\nFrom: sam@vendor.com\nolder text",
			"Will do.",
		},
		{
			"signature delimiter",
			"Thanks!\n-- \nJane Smith\nVP Sales",
			"Thanks!",
		},
		{
			"quoted lines only removed",
			"Top reply\n> quoted one\n> quoted two\nbottom text",
			"Top reply\nbottom text",
		},
		{
			"empty after cleaning",
			"On Mon, Feb 2, 2026 at 9:00 AM Sam <s@v.com> wrote:\n> hi",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanReplyBody(tt.in); got != tt.want {
				t.Errorf("CleanReplyBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitMessageIDs(t *testing.T) {
	got := splitMessageIDs("<a@x.com> junk <b@y.com>")
	if len(got) != 2 || got[0] != "<a@x.com>" || got[1] != "<b@y.com>" {
		t.Errorf("splitMessageIDs = %v", got)
	}
	if got := splitMessageIDs(""); got != nil {
		t.Errorf("empty header = %v, want nil", got)
	}
}
