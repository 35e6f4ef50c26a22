package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/mmcdole/rolo/internal/config"
	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/importer"
	"github.com/mmcdole/rolo/internal/ui"
)

var errNotLoggedIn = errors.New("not logged in")

// dispatch runs the command named by args[0]
func (a *app) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "list", "ls":
		return a.list(ctx, rest)
	case "search":
		return a.search(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "rm":
		return a.remove(ctx, rest)
	case "phone":
		return a.phone(ctx, rest)
	case "import":
		return a.importCards(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q, run 'rolo -h' for usage", name)
	}
}

func (a *app) print(s string) {
	fmt.Fprint(a.out, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(a.out)
	}
}

func (a *app) requireSession() error {
	if !a.auth.LoggedIn() {
		return errNotLoggedIn
	}
	return nil
}

// parseFlags parses args and returns exactly want positional arguments
func parseFlags(fs *flag.FlagSet, args []string, want ...string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != len(want) {
		return nil, fmt.Errorf("%s: expected %s", fs.Name(), strings.Join(want, " "))
	}
	return fs.Args(), nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	server := fs.String("server", "", "contact service URL to save")
	username := fs.String("u", "", "username")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if *server != "" {
		if err := config.SaveServerURL(*server); err != nil {
			return err
		}
		a.logger.Info("saved server url", "url", *server)
		a.print(ui.Success(fmt.Sprintf("Server set to %s, run 'rolo login' to sign in", *server)))
		return nil
	}

	p := newPrompter()
	user, err := p.line("Username", *username)
	if err != nil {
		return err
	}
	password, err := p.password("Password")
	if err != nil {
		return err
	}

	me, err := a.auth.Login(ctx, domain.Credentials{Username: user, Password: password})
	if err != nil {
		return err
	}
	a.print(ui.Success(fmt.Sprintf("Logged in as %s", me.Username)))
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	email := fs.String("email", "", "email address")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	p := newPrompter()
	user, err := p.line("Username", *username)
	if err != nil {
		return err
	}
	addr, err := p.line("Email", *email)
	if err != nil {
		return err
	}
	password, err := p.password("Password")
	if err != nil {
		return err
	}

	me, err := a.auth.Register(ctx, domain.Registration{Username: user, Email: addr, Password: password})
	if err != nil {
		return err
	}
	a.print(ui.Success(fmt.Sprintf("Registered and logged in as %s", me.Username)))
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if !a.auth.LoggedIn() {
		a.print(ui.DimStyle.Render("Not logged in."))
		return nil
	}
	// The local session is gone even if the service call failed
	if err := a.auth.Logout(ctx); err != nil {
		a.print(ui.WarnStyle.Render(fmt.Sprintf("Logged out locally; the service reported: %v", err)))
		return nil
	}
	a.print(ui.Success("Logged out"))
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	me, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", ui.LabelStyle.Render("user"), ui.TitleStyle.Render(me.Username))
	fmt.Fprintf(&b, "%s%s\n", ui.LabelStyle.Render("email"), me.Email)
	fmt.Fprintf(&b, "%s%d\n", ui.LabelStyle.Render("contacts"), len(me.Contacts))
	if exp, ok := a.manager.Expiry(); ok {
		fmt.Fprintf(&b, "%s%s\n", ui.LabelStyle.Render("token"), ui.DimStyle.Render("expires "+exp.Local().Format(time.RFC1123)))
	}
	a.print(b.String())
	return nil
}

// loadContacts fills the cache from the list endpoint
func (a *app) loadContacts(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	summaries, err := a.contacts.ListContacts(ctx)
	if err != nil {
		return err
	}
	a.cache.Load(summaries)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	filter := fs.String("filter", "", "only show contacts whose name or email matches")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.loadContacts(ctx); err != nil {
		return err
	}
	a.print(ui.ContactTable(a.cache.Filter(*filter)))
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search: expected query")
	}
	if err := a.loadContacts(ctx); err != nil {
		return err
	}
	a.print(ui.SearchTable(a.cache.Search(strings.Join(args, " "))))
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show: expected contact id")
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	detail, err := a.cache.EnsureDetail(ctx, args[0])
	if err != nil {
		return err
	}
	a.print(ui.ContactDetail(detail))
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "contact name")
	email := fs.String("email", "", "email address")
	number := fs.String("phone", "", "phone number")
	numberType := fs.String("type", "", "phone type, e.g. mobile")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	user, ok := a.userID(ctx)
	if !ok {
		return errNotLoggedIn
	}
	created, err := a.contacts.CreateContact(ctx, domain.ContactCreate{
		Name:   *name,
		Email:  domain.StringPtr(*email),
		UserID: user,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(*number) != "" {
		phone, err := a.contacts.CreatePhone(ctx, domain.PhoneCreate{
			Number:     strings.TrimSpace(*number),
			NumberType: domain.StringPtr(*numberType),
			ContactID:  created.ID,
		})
		if err != nil {
			return fmt.Errorf("contact %s created, adding phone failed: %w", created.ID, err)
		}
		created.Phones = append(created.Phones, *phone)
	}
	a.cache.Put(*created)
	a.print(ui.ContactDetail(*created))
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	name := fs.String("name", "", "new name")
	email := fs.String("email", "", "new email address")
	pos, err := parseFlags(fs, reorder(args), "<id>")
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	var in domain.ContactUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.Name = name
		case "email":
			in.Email = email
		}
	})
	if in.Name == nil && in.Email == nil {
		return fmt.Errorf("edit: nothing to change")
	}

	updated, err := a.contacts.UpdateContact(ctx, pos[0], in)
	if err != nil {
		return err
	}
	a.cache.Invalidate(updated.ID)
	a.print(ui.Success(fmt.Sprintf("Updated %s", updated.Name)))
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rm: expected contact id")
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.contacts.DeleteContact(ctx, args[0]); err != nil {
		return err
	}
	a.cache.Invalidate(args[0])
	a.print(ui.Success(fmt.Sprintf("Deleted %s", args[0])))
	return nil
}

func (a *app) phone(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("phone: expected add, edit or rm")
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("phone "+args[0], flag.ContinueOnError)
	number := fs.String("number", "", "phone number")
	numberType := fs.String("type", "", "phone type, e.g. mobile")

	switch args[0] {
	case "add":
		pos, err := parseFlags(fs, reorder(args[1:]), "<contact-id>")
		if err != nil {
			return err
		}
		phone, err := a.contacts.CreatePhone(ctx, domain.PhoneCreate{
			Number:     strings.TrimSpace(*number),
			NumberType: domain.StringPtr(*numberType),
			ContactID:  pos[0],
		})
		if err != nil {
			return err
		}
		a.cache.Invalidate(pos[0])
		a.print(ui.Success(fmt.Sprintf("Added %s (%s)", phone.Number, phone.ID)))
		return nil

	case "edit":
		pos, err := parseFlags(fs, reorder(args[1:]), "<phone-id>")
		if err != nil {
			return err
		}
		var in domain.PhoneUpdate
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "number":
				in.Number = number
			case "type":
				in.NumberType = numberType
			}
		})
		if in.Number == nil && in.NumberType == nil {
			return fmt.Errorf("phone edit: nothing to change")
		}
		phone, err := a.contacts.UpdatePhone(ctx, pos[0], in)
		if err != nil {
			return err
		}
		a.cache.Invalidate(phone.ContactID)
		a.print(ui.Success(fmt.Sprintf("Updated %s", phone.Number)))
		return nil

	case "rm":
		pos, err := parseFlags(fs, args[1:], "<phone-id>")
		if err != nil {
			return err
		}
		if err := a.contacts.DeletePhone(ctx, pos[0]); err != nil {
			return err
		}
		// The owning contact is unknown here
		a.cache.InvalidateAll()
		a.print(ui.Success(fmt.Sprintf("Deleted phone %s", pos[0])))
		return nil

	default:
		return fmt.Errorf("phone: unknown subcommand %q", args[0])
	}
}

func (a *app) importCards(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	remoteImport := fs.Bool("remote", false, "let the service parse the file")
	concurrency := fs.Int("concurrency", 0, "parallel creates (default from config)")
	pos, err := parseFlags(fs, reorder(args), "<file.vcf>")
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	path := pos[0]

	me, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	if *remoteImport {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open card file: %w", err)
		}
		defer f.Close()

		result, err := a.contacts.UploadCards(ctx, me.ID, filepath.Base(path), f)
		if err != nil {
			return err
		}
		a.cache.InvalidateAll()
		a.print(ui.UploadResult(*result))
		return nil
	}

	pipeline := a.importer
	if *concurrency > 0 {
		pipeline = importer.New(a.contacts, *concurrency, a.logger)
	}

	stop := startSpinner("Importing cards...")
	report, err := pipeline.ImportFile(ctx, path, me.ID, me.Contacts)
	stop()
	if err != nil {
		return err
	}
	for _, c := range report.Created {
		a.cache.Put(c)
	}
	a.print(ui.ImportReport(report))
	return nil
}

// userID returns the id of the logged in user
func (a *app) userID(ctx context.Context) (string, bool) {
	me, err := a.auth.CurrentUser(ctx)
	if err != nil {
		a.logger.Warn("failed to load current user", "error", err)
		return "", false
	}
	return me.ID, true
}

// reorder moves flags ahead of positional arguments so "edit <id> -name x"
// parses the same as "edit -name x <id>"
func reorder(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		if !strings.Contains(arg, "=") && i+1 < len(args) && !isBoolFlag(arg) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	name := strings.TrimLeft(arg, "-")
	return name == "remote"
}

// startSpinner animates msg on stderr until the returned func is called.
// Nothing is drawn when stderr is not a terminal.
func startSpinner(msg string) func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			fmt.Fprintf(os.Stderr, "\r%s %s", ui.SpinnerStyle.Render(ui.SpinnerFrames[frame%len(ui.SpinnerFrames)]), msg)
			select {
			case <-done:
				fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(msg)+2))
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
