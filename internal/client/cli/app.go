package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dmitrijs2005/filekeeper/internal/client/api"
	"github.com/dmitrijs2005/filekeeper/internal/client/config"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage")

type App struct {
	config *config.Config
	client *api.Client
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func NewApp(c *config.Config, in io.Reader, out, errOut io.Writer) (*App, error) {
	client, err := api.New(c.ServerURL, &http.Client{Timeout: c.Timeout})
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		client = client.WithToken(c.Token)
	}
	return &App{config: c, client: client, reader: bufio.NewReader(in), out: out, errOut: errOut}, nil
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"register": {"register <username> <email>", (*App).register},
	"login":    {"login <username>", (*App).login},
	"upload":   {"upload <path> [name]", (*App).upload},
	"list":     {"list", (*App).list},
	"get":      {"get [-o path] <filename>", (*App).get},
	"download": {"download [-o path] <filename>", (*App).download},
	"rename":   {"rename <filename> <new filename>", (*App).rename},
	"delete":   {"delete <filename>", (*App).delete},
}

var commandOrder = []string{"register", "login", "upload", "list", "get", "download", "rename", "delete"}

// Run executes one command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" {
		a.help()
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(a.errOut, "Unknown command: %s\n", args[0])
		a.help()
		return 2
	}

	if err := cmd.run(a, ctx, args[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			fmt.Fprintf(a.errOut, "Usage: filekeeper %s\n", cmd.usage)
			return 2
		}
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) help() {
	fmt.Fprintln(a.errOut, "Available commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(a.errOut, "  %s\n", commands[name].usage)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	pw, err := GetPassword(a.errOut)
	if err != nil {
		return err
	}
	defer wipe(pw)

	msg, err := a.client.Register(ctx, args[0], args[1], string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}

	username := ""
	if len(args) == 1 {
		username = args[0]
	} else {
		var err error
		if username, err = GetSimpleText(a.reader, "Username", a.errOut); err != nil {
			return err
		}
	}

	pw, err := GetPassword(a.errOut)
	if err != nil {
		return err
	}
	defer wipe(pw)

	token, err := a.client.Login(ctx, username, string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(args[0])
	if len(args) == 2 {
		name = args[1]
	}

	stored, err := a.client.Upload(ctx, name, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, stored)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}

	files, err := a.client.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILENAME\tORIGINAL NAME\tSIZE\tUPLOADED\tTYPE")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", f.Filename, f.OriginalName, f.Size, f.UploadDate.Local().Format("2006-01-02 15:04:05"), f.MimeType)
	}
	return tw.Flush()
}

func (a *App) get(ctx context.Context, args []string) error {
	return a.fetch(ctx, "get", args, false)
}

func (a *App) download(ctx context.Context, args []string) error {
	return a.fetch(ctx, "download", args, true)
}

func (a *App) fetch(ctx context.Context, name string, args []string, original bool) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	output := fs.String("o", "", "output path")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return ErrUsage
	}

	d, err := a.client.Get(ctx, fs.Arg(0), original)
	if err != nil {
		return err
	}
	defer d.Body.Close()

	target := *output
	if target == "" {
		// the server picks the name; never let it choose a directory
		target = filepath.Base(d.Filename)
		if target == "." || target == ".." || target == string(filepath.Separator) {
			target = filepath.Base(fs.Arg(0))
		}
	}

	if err := writeNew(target, d.Body); err != nil {
		return err
	}
	fmt.Fprintln(a.out, target)
	return nil
}

// writeNew copies r into a new file at path. An existing file is left alone.
func writeNew(path string, r io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	_, err = io.Copy(f, r)
	return err
}

func (a *App) rename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	msg, err := a.client.Rename(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	msg, err := a.client.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}
