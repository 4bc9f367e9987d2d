package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"qroll/internal/models"
	"qroll/internal/services"
)

func (cli *commandLine) discover(ctx context.Context) error {
	if err := cli.requireRole(ctx, services.DestinationStudentHome); err != nil {
		return err
	}

	sessions, err := cli.joins.Discover(ctx)
	if err != nil {
		return err
	}
	cli.printSessions(sessions)
	return nil
}

func (cli *commandLine) printSessions(sessions []models.JoinableSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(cli.out, "You are not in any class yet.")
		return
	}
	for _, s := range sessions {
		switch {
		case s.Available:
			mark := ""
			if s.Joined {
				mark = "  [joined]"
			}
			fmt.Fprintf(cli.out, "%s  %s (%s)  %d present%s\n", s.LectureID, s.Title, s.Group.Name, s.AttendanceCount, mark)
		case s.Error != "":
			fmt.Fprintf(cli.out, "-  %s: unavailable (%s)\n", s.Group.Name, s.Error)
		default:
			fmt.Fprintf(cli.out, "-  %s: no active session\n", s.Group.Name)
		}
	}
}

func (cli *commandLine) join(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	sessionID := fs.String("session", "", "Session (lecture) id from discover.")
	lat := fs.Float64("lat", 0, "Your latitude, for geofenced sessions.")
	lng := fs.Float64("lng", 0, "Your longitude, for geofenced sessions.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *sessionID == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.requireRole(ctx, services.DestinationStudentHome); err != nil {
		return err
	}

	if _, err := cli.joins.Discover(ctx); err != nil {
		return err
	}

	var locator services.StaticLocator
	if isSet(fs, "lat") || isSet(fs, "lng") {
		locator.Coords = &models.Coordinates{Latitude: *lat, Longitude: *lng}
	}
	coords, err := locator.Locate(ctx)
	if err != nil && !errors.Is(err, services.ErrLocationUnavailable) {
		return err
	}

	if err := cli.joins.Join(ctx, *sessionID, coords); err != nil {
		if errors.Is(err, services.ErrUnknownSession) {
			return fmt.Errorf("no running session %q, run: qroll discover", *sessionID)
		}
		return err
	}
	return nil
}
