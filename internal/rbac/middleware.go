package rbac

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxPeekBody bounds how much request body the guard will buffer while
// peeking the personality field.
const maxPeekBody = 64 << 20

// upgradeRequired is the wire shape of a denial. Produced in exactly
// one place so the error contract cannot drift between routes.
type upgradeRequired struct {
	ErrorCode    string `json:"error_code"`
	Detail       string `json:"detail"`
	RequiredRole string `json:"required_role"`
	Personality  string `json:"personality"`
}

// Middleware enforces persona access on form-posting chat routes.
//
// The personality lives inside the request body, so the body is
// buffered in full, peeked, and replayed byte for byte downstream.
// Handlers behind this middleware see the request exactly as sent.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read one byte past the cap so truncation is detectable. A
		// silently truncated body must never be replayed downstream.
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody+1))
		if err != nil {
			// Client went away mid-upload. Nothing useful to write.
			return
		}
		r.Body.Close()
		if int64(len(body)) > maxPeekBody {
			writeTooLarge(w)
			return
		}

		decision := g.Check(r.Context(), g.peekPersonality(r, body))
		if !decision.Allowed {
			writeUpgradeRequired(w, decision)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// peekPersonality extracts the personality form field from the
// buffered body. Any parse failure fails open to "", which Check maps
// to the default persona.
func (g *Guard) peekPersonality(r *http.Request, body []byte) string {
	peek := r.Clone(r.Context())
	peek.Body = io.NopCloser(bytes.NewReader(body))
	peek.ContentLength = int64(len(body))

	// PostFormValue parses urlencoded and multipart bodies alike and
	// returns "" on any parse failure.
	name := peek.PostFormValue("personality")

	// The peek parse may spill large file parts to temp files. The
	// server only cleans up the real request's form, so release the
	// clone's here.
	if peek.MultipartForm != nil {
		peek.MultipartForm.RemoveAll()
	}
	return name
}

func writeTooLarge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	json.NewEncoder(w).Encode(map[string]string{"detail": "Request body too large."})
}

func writeUpgradeRequired(w http.ResponseWriter, decision Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(upgradeRequired{
		ErrorCode:    "UPGRADE_REQUIRED",
		Detail:       "The " + decision.Personality + " personality requires a supporter subscription.",
		RequiredRole: string(decision.RequiredRole),
		Personality:  decision.Personality,
	})
}
