package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"qroll/internal/middleware"
	"qroll/internal/models"
	"qroll/internal/projector"
	"qroll/internal/services"
)

func (cli *commandLine) listClasses(ctx context.Context) error {
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	classes, err := cli.catalog.Classes(ctx)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		fmt.Fprintln(cli.out, "No classes yet. Create one with: qroll class create -name NAME")
		return nil
	}

	for _, class := range classes {
		fmt.Fprintf(cli.out, "%s (%s)", class.Name, class.ID)
		if class.JoinCode != "" {
			fmt.Fprintf(cli.out, "  join code: %s", class.JoinCode)
		}
		fmt.Fprintln(cli.out)
		for _, subject := range class.Subjects {
			fmt.Fprintf(cli.out, "  %s  %s\n", subject.Code, subject.Name)
			for _, lecture := range subject.Lectures {
				fmt.Fprintf(cli.out, "    %s  %s  %d min\n", lecture.ID, lecture.Title, lecture.Duration)
			}
		}
	}
	return nil
}

func (cli *commandLine) createClass(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("class create", flag.ContinueOnError)
	name := fs.String("name", "", "Class name.")
	description := fs.String("description", "", "Optional description.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *name == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	if err := cli.catalog.CreateClass(ctx, models.CreateClassRequest{Name: *name, Description: *description}); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "✓ Class %q created\n", *name)
	return nil
}

func (cli *commandLine) addSubject(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("subject add", flag.ContinueOnError)
	classID := fs.String("class", "", "Class id.")
	name := fs.String("name", "", "Subject name.")
	code := fs.String("code", "", "Subject code, unique within the class.")
	description := fs.String("description", "", "Optional description.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *classID == "" || *name == "" || *code == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	req := models.CreateSubjectRequest{Name: *name, Code: *code, Description: *description}
	if err := cli.catalog.AddSubject(ctx, *classID, req); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "✓ Subject %s added\n", *code)
	return nil
}

func (cli *commandLine) addLecture(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lecture add", flag.ContinueOnError)
	classID := fs.String("class", "", "Class id.")
	subject := fs.String("subject", "", "Subject code.")
	title := fs.String("title", "", "Lecture title.")
	description := fs.String("description", "", "Optional description.")
	duration := fs.Int("duration", models.DefaultLectureDuration, "Duration in minutes (15-180).")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *classID == "" || *subject == "" || *title == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	req := models.CreateLectureRequest{Title: *title, Description: *description, Duration: *duration}
	if err := cli.catalog.AddLecture(ctx, *classID, *subject, req); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "✓ Lecture %q added\n", *title)
	return nil
}

func (cli *commandLine) startSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("session start", flag.ContinueOnError)
	classID := fs.String("class", "", "Class id.")
	subject := fs.String("subject", "", "Subject code.")
	lectureID := fs.String("lecture", "", "Lecture id.")
	duration := fs.Int("duration", 0, "Session duration in minutes (default: the lecture's).")
	lat := fs.Float64("lat", 0, "Geofence latitude. Without -lat/-lng students may join from anywhere.")
	lng := fs.Float64("lng", 0, "Geofence longitude.")
	radius := fs.Float64("radius", 100, "Geofence radius in meters.")
	withProjector := fs.Bool("projector", false, "Serve the projector page with a live QR code.")
	runFor := fs.Duration("for", 0, "Stop automatically after this long (default: the session duration).")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *classID == "" || *subject == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	class, subj, lecture, err := cli.catalog.Resolve(ctx, *classID, *subject, *lectureID)
	if err != nil {
		return err
	}

	location := models.Anywhere()
	if isSet(fs, "lat") || isSet(fs, "lng") {
		here := services.StaticLocator{Coords: &models.Coordinates{Latitude: *lat, Longitude: *lng}}
		if location, err = services.GeofenceHere(ctx, here, *radius); err != nil {
			return err
		}
	}

	session, err := cli.sessions.CreateSession(ctx, services.SessionRequest{
		Class:           class,
		Subject:         subj,
		Lecture:         lecture,
		DurationMinutes: *duration,
		Location:        location,
	})
	if err != nil {
		return err
	}

	if *withProjector {
		if err := cli.startProjector(ctx, session.ID); err != nil {
			return err
		}
	}

	display := &sessionDisplay{cli: cli, title: lecture.Title}
	display.show(models.SessionSnapshot{SessionID: session.ID, JoinToken: session.JoinToken, Attendance: session.Attendance})
	cli.sessions.Subscribe(display.show)

	wait := *runFor
	if wait <= 0 {
		wait = time.Duration(session.Duration) * time.Minute
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cli.sessions.StopSession(stopCtx)

	fmt.Fprintf(cli.out, "Session %s closed with %d present\n", session.ID, display.present())
	return nil
}

func (cli *commandLine) startProjector(ctx context.Context, sessionID string) error {
	views, err := middleware.NewViewTokens(cli.cfg.ProjectorSecret, 0)
	if err != nil {
		return err
	}
	server := projector.New(cli.cfg.ProjectorAddr, views, cli.sessions)
	if err := server.Start(ctx); err != nil {
		return err
	}
	cli.closers = append(cli.closers, server.Close)

	viewURL, err := server.ViewURL(sessionID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Projector: %s\n", viewURL)
	return nil
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sessionID := fs.String("session", "", "Session id.")
	format := fs.String("format", "csv", "Report format: csv or xlsx.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *sessionID == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationTeacherHome); err != nil {
		return err
	}

	_, err := cli.sessions.ExportReport(ctx, *sessionID, *format)
	return err
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
