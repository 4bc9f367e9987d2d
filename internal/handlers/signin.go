package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"

	"qroll/internal/models"
	"qroll/internal/validate"
)

// ErrNotWaiting is returned by a CredentialSink when no sign-in is pending.
var ErrNotWaiting = errors.New("no sign-in is pending")

// CredentialSink receives the Google credential posted by the sign-in page.
type CredentialSink interface {
	ClientID() string
	// TakeAutoSelectDisabled reports whether the page must call
	// disableAutoSelect, and resets the flag.
	TakeAutoSelectDisabled() bool
	Deliver(credential string) error
}

type SignInHandler struct {
	sink CredentialSink
}

func NewSignInHandler(sink CredentialSink) *SignInHandler {
	return &SignInHandler{sink: sink}
}

type signInPage struct {
	ClientID          string
	DisableAutoSelect bool
}

func (h *SignInHandler) Page(w http.ResponseWriter, r *http.Request) {
	page := signInPage{
		ClientID:          h.sink.ClientID(),
		DisableAutoSelect: h.sink.TakeAutoSelectDisabled(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := signInTemplate.Execute(w, page); err != nil {
		log.Printf("sign-in page: %v", err)
	}
}

func (h *SignInHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if fields := validate.Struct(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing Google credential", r))
		return
	}

	if err := h.sink.Deliver(req.Credential); err != nil {
		if errors.Is(err, ErrNotWaiting) {
			writeJSON(w, http.StatusConflict, errorResp("NOT_WAITING", "No sign-in is in progress", r))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("SIGN_IN_FAILED", err.Error(), r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed in. You can close this tab.",
	})
}

var signInTemplate = template.Must(template.New("signin").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Qroll · Sign in</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; flex-direction: column; align-items: center; margin-top: 15vh; }
#status { margin-top: 1.5em; color: #555; }
</style>
</head>
<body>
<h1>Qroll</h1>
<div id="button"></div>
<p id="status">Loading Google Sign-In…</p>
<script>
function onCredential(response) {
  var status = document.getElementById("status");
  status.textContent = "Signing in…";
  fetch("/callback", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({credential: response.credential})
  }).then(function (r) { return r.json(); }).then(function (body) {
    if (body.success) {
      status.textContent = body.message;
    } else {
      status.textContent = (body.error && body.error.message) || "Sign-in failed";
    }
  }).catch(function () {
    status.textContent = "Sign-in failed";
  });
}
function init() {
  google.accounts.id.initialize({client_id: {{.ClientID}}, callback: onCredential});
  {{if .DisableAutoSelect}}google.accounts.id.disableAutoSelect();{{end}}
  google.accounts.id.renderButton(document.getElementById("button"), {theme: "outline", size: "large"});
  document.getElementById("status").textContent = "Sign in with Google to continue";
}
</script>
<script src="https://accounts.google.com/gsi/client" async defer onload="init()"></script>
</body>
</html>
`))
