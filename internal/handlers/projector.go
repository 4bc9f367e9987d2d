package handlers

import (
	"html/template"
	"log"
	"net/http"

	"github.com/skip2/go-qrcode"

	"qroll/internal/middleware"
	"qroll/internal/models"
)

const qrSize = 512

// SessionSource is the teacher's live session, as seen by the projector.
type SessionSource interface {
	Current() *models.LiveSession
}

type ProjectorHandler struct {
	sessions SessionSource
}

func NewProjectorHandler(sessions SessionSource) *ProjectorHandler {
	return &ProjectorHandler{sessions: sessions}
}

// session returns the live session the view token was issued for.
func (h *ProjectorHandler) session(r *http.Request) *models.LiveSession {
	current := h.sessions.Current()
	if current == nil || current.ID != middleware.GetSessionID(r.Context()) {
		return nil
	}
	return current
}

func (h *ProjectorHandler) Page(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active session", r))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := projectorTemplate.Execute(w, map[string]string{
		"Token":     r.URL.Query().Get("token"),
		"JoinToken": session.JoinToken,
	})
	if err != nil {
		log.Printf("projector page: %v", err)
	}
}

// QR renders the current join token as a PNG.
func (h *ProjectorHandler) QR(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active session", r))
		return
	}

	png, err := qrcode.Encode(session.JoinToken, qrcode.Medium, qrSize)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render QR code", r))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *ProjectorHandler) State(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active session", r))
		return
	}
	writeJSON(w, http.StatusOK, models.SessionSnapshot{
		SessionID:  session.ID,
		JoinToken:  session.JoinToken,
		Attendance: session.Attendance,
	})
}

var projectorTemplate = template.Must(template.New("projector").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Qroll · Attendance</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; gap: 3em; padding: 2em; }
#qr { width: 60vh; height: 60vh; image-rendering: pixelated; }
#code { font-size: 2em; letter-spacing: 0.2em; text-align: center; }
#ended { display: none; color: #b00; font-size: 1.5em; }
</style>
</head>
<body>
<div>
  <img id="qr" alt="Join QR code">
  <div id="code">{{.JoinToken}}</div>
  <div id="ended">Session ended</div>
</div>
<div>
  <h2>Present: <span id="count">0</span></h2>
  <ol id="attendance"></ol>
</div>
<script>
var token = {{.Token}};
var qr = document.getElementById("qr");
function reloadQR() { qr.src = "/qr.png?token=" + encodeURIComponent(token) + "&t=" + Date.now(); }
function render(snapshot) {
  if (snapshot.ended) {
    qr.style.display = "none";
    document.getElementById("ended").style.display = "block";
    return;
  }
  reloadQR();
  document.getElementById("code").textContent = snapshot.join_token;
  var list = document.getElementById("attendance");
  list.innerHTML = "";
  (snapshot.attendance || []).forEach(function (record) {
    var item = document.createElement("li");
    item.textContent = record.name || record.student_id;
    list.appendChild(item);
  });
  document.getElementById("count").textContent = (snapshot.attendance || []).length;
}
reloadQR();
var scheme = location.protocol === "https:" ? "wss://" : "ws://";
var ws = new WebSocket(scheme + location.host + "/ws?token=" + encodeURIComponent(token));
ws.onmessage = function (event) {
  var msg = JSON.parse(event.data);
  if (msg.type === "session") { render(msg.payload); }
};
</script>
</body>
</html>
`))
