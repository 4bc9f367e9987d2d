package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"qroll/internal/api"
	"qroll/internal/config"
	"qroll/internal/services"
	"qroll/internal/signin"
	"qroll/internal/storage"
)

var (
	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in, run: qroll login")
)

type commandLine struct {
	cfg      *config.Config
	store    *storage.SessionStore
	client   *api.Client
	notices  *services.Notices
	catalog  *services.Catalog
	sessions *services.SessionController
	joins    *services.JoinController
	out      io.Writer

	isTerminal func() bool                      // mockable
	newSignIn  func() services.IdentityProvider // mockable
	closers    []func(ctx context.Context) error
}

func newCommandLine(cfg *config.Config, store *storage.SessionStore, out io.Writer) *commandLine {
	client := api.New(cfg.APIURL, store, cfg.HTTPTimeout)
	notices := services.NewNotices(cfg.NoticeTTL)

	cli := &commandLine{
		cfg:     cfg,
		store:   store,
		client:  client,
		notices: notices,
		catalog: services.NewCatalog(client),
		sessions: services.NewSessionController(client, notices, services.SessionOptions{
			RefreshInterval: cfg.RefreshInterval,
			PollInterval:    cfg.PollInterval,
			DownloadDir:     cfg.DownloadDir,
		}),
		joins: services.NewJoinController(client, notices),
		out:   out,
	}
	notices.OnPost = cli.printNotice

	cli.isTerminal = func() bool {
		f, ok := cli.out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
	cli.newSignIn = func() services.IdentityProvider {
		p := signin.New(cfg.SignInAddr, cfg.GoogleClientID)
		cli.closers = append(cli.closers, p.Close)
		return p
	}
	return cli
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login                                   - sign in with Google")
	fmt.Fprintln(cli.out, "  whoami                                  - show the signed-in user")
	fmt.Fprintln(cli.out, "  role teacher|student                    - choose your role")
	fmt.Fprintln(cli.out, "  logout                                  - sign out")
	fmt.Fprintln(cli.out, "Teachers:")
	fmt.Fprintln(cli.out, "  classes                                 - list classes, subjects and lectures")
	fmt.Fprintln(cli.out, "  class create -name NAME                 - create a class")
	fmt.Fprintln(cli.out, "  subject add -class ID -name N -code C   - add a subject to a class")
	fmt.Fprintln(cli.out, "  lecture add -class ID -subject C -title T [-duration MIN]")
	fmt.Fprintln(cli.out, "  session start -class ID -subject C -lecture ID [-lat L -lng L -radius M] [-projector]")
	fmt.Fprintln(cli.out, "  export -session ID [-format csv|xlsx]   - download the attendance report")
	fmt.Fprintln(cli.out, "Students:")
	fmt.Fprintln(cli.out, "  discover                                - list running sessions")
	fmt.Fprintln(cli.out, "  join -session ID [-lat L -lng L]        - join a running session")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "login":
		return cli.login(ctx)
	case "whoami":
		return cli.whoami(ctx)
	case "role":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: role teacher|student")
			return errHelp
		}
		return cli.selectRole(ctx, args[2])
	case "logout":
		return cli.logout(ctx)
	case "classes":
		return cli.listClasses(ctx)
	case "class":
		if len(args) < 3 || args[2] != "create" {
			fmt.Fprintln(cli.out, "Usage: class create -name NAME [-description TEXT]")
			return errHelp
		}
		return cli.createClass(ctx, args[3:])
	case "subject":
		if len(args) < 3 || args[2] != "add" {
			fmt.Fprintln(cli.out, "Usage: subject add -class ID -name NAME -code CODE [-description TEXT]")
			return errHelp
		}
		return cli.addSubject(ctx, args[3:])
	case "lecture":
		if len(args) < 3 || args[2] != "add" {
			fmt.Fprintln(cli.out, "Usage: lecture add -class ID -subject CODE -title TITLE [-duration MIN]")
			return errHelp
		}
		return cli.addLecture(ctx, args[3:])
	case "session":
		if len(args) < 3 || args[2] != "start" {
			fmt.Fprintln(cli.out, "Usage: session start -class ID -subject CODE -lecture ID [flags]")
			return errHelp
		}
		return cli.startSession(ctx, args[3:])
	case "export":
		return cli.export(ctx, args[2:])
	case "discover":
		return cli.discover(ctx)
	case "join":
		return cli.join(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

// parse runs fs over args. -h and parse failures print usage and become errHelp.
func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(cli.out)
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	return nil
}

func (cli *commandLine) close() {
	cli.sessions.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, closeFn := range cli.closers {
		closeFn(ctx)
	}
}

func (cli *commandLine) printNotice(n services.Notice) {
	symbol := "•"
	switch n.Kind {
	case services.NoticeSuccess:
		symbol = "✓"
	case services.NoticeError:
		symbol = "✗"
	}
	fmt.Fprintf(cli.out, "%s %s\n", symbol, n.Message)
}
