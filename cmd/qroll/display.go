package main

import (
	"fmt"
	"sync"

	"github.com/skip2/go-qrcode"

	"qroll/internal/models"
)

const clearScreen = "\033[H\033[2J"

// sessionDisplay prints the live session. On a terminal the QR code and the
// attendance list are redrawn in place; otherwise only changes are printed.
type sessionDisplay struct {
	cli   *commandLine
	title string

	mu       sync.Mutex
	token    string
	count    int
	rendered bool
	ended    bool
}

func (d *sessionDisplay) show(snap models.SessionSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ended {
		return
	}
	if snap.Ended {
		d.ended = true
		return
	}

	changed := !d.rendered || snap.JoinToken != d.token || len(snap.Attendance) != d.count
	if !changed {
		return
	}

	out := d.cli.out
	if d.cli.isTerminal() {
		fmt.Fprint(out, clearScreen)
		fmt.Fprintf(out, "%s: live session %s\n\n", d.title, snap.SessionID)
		if qr, err := qrcode.New(snap.JoinToken, qrcode.Medium); err == nil {
			fmt.Fprint(out, qr.ToSmallString(false))
		}
		fmt.Fprintf(out, "Join code: %s\n\nPresent (%d):\n", snap.JoinToken, len(snap.Attendance))
		for _, record := range snap.Attendance {
			fmt.Fprintf(out, "  %s\n", displayName(record))
		}
		fmt.Fprintln(out, "\nPress Ctrl-C to end the session.")
	} else {
		if snap.JoinToken != d.token {
			fmt.Fprintf(out, "Join code: %s\n", snap.JoinToken)
		}
		if !d.rendered || len(snap.Attendance) != d.count {
			fmt.Fprintf(out, "Present: %d\n", len(snap.Attendance))
		}
	}

	d.token = snap.JoinToken
	d.count = len(snap.Attendance)
	d.rendered = true
}

func (d *sessionDisplay) present() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func displayName(r models.AttendanceRecord) string {
	if r.Name != "" {
		return r.Name
	}
	return r.StudentID
}
