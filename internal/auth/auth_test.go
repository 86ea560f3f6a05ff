package auth

import (
	"net/http"
	"testing"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Principal
	}{
		{
			name:    "no headers",
			headers: map[string]string{},
			want:    Principal{},
		},
		{
			name:    "editor with terms",
			headers: map[string]string{HeaderPrincipalID: "ada", HeaderTerms: "true"},
			want:    Principal{ID: "ada", TermsAccepted: true},
		},
		{
			name:    "admin",
			headers: map[string]string{HeaderPrincipalID: "root", HeaderAdmin: "true", HeaderTerms: "true"},
			want:    Principal{ID: "root", Admin: true, TermsAccepted: true},
		},
		{
			name:    "non-true flag values ignored",
			headers: map[string]string{HeaderPrincipalID: "ada", HeaderAdmin: "yes", HeaderTerms: "1"},
			want:    Principal{ID: "ada"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			got := FromRequest(req)
			if got != tt.want {
				t.Errorf("FromRequest = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPrincipal_Valid(t *testing.T) {
	if (Principal{}).Valid() {
		t.Error("zero principal should not be valid")
	}
	if !(Principal{ID: "ada"}).Valid() {
		t.Error("principal with id should be valid")
	}
}
