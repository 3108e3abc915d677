// Package cli implements vrctl, a console for reviewing vendor requests.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/da-luiz/Clear-Chain/internal/apiclient"
	"github.com/da-luiz/Clear-Chain/internal/requestdetail"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage error")

const usage = `usage: vrctl <command> [flags]

commands:
  login -u <username> [-p <password>]
  logout
  pending
  show <id>
  submit <id>
  cancel <id>
  approve <id> [-comment text]
  reject <id> -reason text
  request-info <id> -note text
  banking <id> -bank name -holder name -account number [-swift code] [-currency ISO] [-terms text] [-method text]
  upload <path>`

// App runs vrctl commands.
type App struct {
	cfg   Config
	store apiclient.FileSessionStore
	out   io.Writer
	err   io.Writer
}

// New constructs an App writing results to out and diagnostics to errOut.
func New(cfg Config, out, errOut io.Writer) *App {
	return &App{cfg: cfg, store: apiclient.FileSessionStore{Path: cfg.SessionFile}, out: out, err: errOut}
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.err, usage)
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "pending":
		return a.pending(ctx)
	case "show":
		return a.show(ctx, rest)
	case "submit":
		return a.simple(ctx, rest, workflow.ActionSubmit)
	case "cancel":
		return a.simple(ctx, rest, workflow.ActionCancel)
	case "approve":
		return a.decide(ctx, rest, true)
	case "reject":
		return a.decide(ctx, rest, false)
	case "request-info":
		return a.requestInfo(ctx, rest)
	case "banking":
		return a.banking(ctx, rest)
	case "upload":
		return a.upload(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	}
	fmt.Fprintf(a.err, "unknown command %q\n%s\n", cmd, usage)
	return ErrUsage
}

func (a *App) client(sess *apiclient.Session) *apiclient.Client {
	return apiclient.New(apiclient.Config{BaseURL: a.cfg.APIURL, Timeout: a.cfg.Timeout}, sess)
}

func (a *App) session() (*apiclient.Client, error) {
	sess, err := a.store.Load()
	if err != nil {
		if errors.Is(err, apiclient.ErrNoSession) {
			return nil, fmt.Errorf("%w: run vrctl login first", err)
		}
		return nil, err
	}
	return a.client(sess), nil
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.err)
	return fs
}

// parseID accepts the id either before or after the flags.
func parseID(fs *flag.FlagSet, args []string) (int64, error) {
	var raw string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		raw, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if raw == "" {
		raw = fs.Arg(0)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s needs a request id", ErrUsage, fs.Name())
	}
	return id, nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (defaults to $CLEARCHAIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *password == "" {
		*password = os.Getenv("CLEARCHAIN_PASSWORD")
	}
	if strings.TrimSpace(*username) == "" || *password == "" {
		return fmt.Errorf("%w: login needs -u and a password", ErrUsage)
	}
	sess, err := a.client(nil).Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	if err := a.store.Save(sess); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", sess.User.Username, sess.User.Role.DisplayName())
	return nil
}

func (a *App) logout(ctx context.Context) error {
	client, err := a.session()
	if err != nil {
		if errors.Is(err, apiclient.ErrNoSession) {
			return nil
		}
		return err
	}
	if err := client.Logout(ctx); err != nil {
		fmt.Fprintf(a.err, "server logout: %v\n", err)
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) pending(ctx context.Context) error {
	client, err := a.session()
	if err != nil {
		return err
	}
	items, err := client.Pending(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tCOMPANY\tSTATUS")
	for _, r := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.RequestNumber, r.CompanyName, r.Status)
	}
	return tw.Flush()
}

func (a *App) load(ctx context.Context, id int64) (*requestdetail.Controller, error) {
	client, err := a.session()
	if err != nil {
		return nil, err
	}
	ctrl := requestdetail.New(client)
	if err := ctrl.Load(ctx, id); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (a *App) show(ctx context.Context, args []string) error {
	id, err := parseID(a.flags("show"), args)
	if err != nil {
		return err
	}
	ctrl, err := a.load(ctx, id)
	if err != nil {
		return err
	}
	a.print(ctrl)
	return nil
}

func (a *App) print(ctrl *requestdetail.Controller) {
	req, _ := ctrl.Request()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Request\t%s (#%d)\n", req.RequestNumber, req.ID)
	fmt.Fprintf(tw, "Company\t%s\n", req.CompanyName)
	fmt.Fprintf(tw, "Status\t%s\n", req.Status)
	if req.ExpectedContractValue != nil {
		fmt.Fprintf(tw, "Contract value\t%s %s\n", req.ExpectedContractValue.StringFixed(2), req.Currency)
	}
	if req.Status == workflow.StatusPendingFinanceReview || req.BankingDetails.Complete() {
		if missing := req.BankingDetails.Missing(); len(missing) > 0 {
			fmt.Fprintf(tw, "Banking\tmissing %s\n", strings.Join(missing, ", "))
		} else {
			fmt.Fprintf(tw, "Banking\t%s / %s\n", req.BankName, req.AccountHolderName)
		}
	}
	if req.RejectionReason != "" {
		fmt.Fprintf(tw, "Rejection reason\t%s\n", req.RejectionReason)
	}
	if req.AdditionalInfoRequired != "" {
		fmt.Fprintf(tw, "Info requested\t%s\n", req.AdditionalInfoRequired)
	}
	actions := ctrl.Actions()
	names := make([]string, len(actions))
	for i, act := range actions {
		names[i] = string(act)
	}
	if len(names) == 0 {
		names = []string{"none"}
	}
	fmt.Fprintf(tw, "Actions\t%s\n", strings.Join(names, ", "))
	_ = tw.Flush()
}

func (a *App) invoke(ctx context.Context, id int64, pick func(vendorrequests.VendorRequest) (workflow.Action, error), in requestdetail.Input) error {
	ctrl, err := a.load(ctx, id)
	if err != nil {
		return err
	}
	req, _ := ctrl.Request()
	action, err := pick(req)
	if err != nil {
		return err
	}
	if _, err := ctrl.Invoke(ctx, action, in); err != nil {
		return err
	}
	a.print(ctrl)
	return nil
}

func fixed(action workflow.Action) func(vendorrequests.VendorRequest) (workflow.Action, error) {
	return func(vendorrequests.VendorRequest) (workflow.Action, error) { return action, nil }
}

func (a *App) simple(ctx context.Context, args []string, action workflow.Action) error {
	id, err := parseID(a.flags(string(action)), args)
	if err != nil {
		return err
	}
	return a.invoke(ctx, id, fixed(action), requestdetail.Input{})
}

func (a *App) decide(ctx context.Context, args []string, approve bool) error {
	name, pick, text := "reject", workflow.RejectActionFor, "reason"
	if approve {
		name, pick, text = "approve", workflow.ApproveActionFor, "comment"
	}
	fs := a.flags(name)
	reason := fs.String(text, "", "reviewer "+text)
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	return a.invoke(ctx, id, func(req vendorrequests.VendorRequest) (workflow.Action, error) {
		return pick(req.Status)
	}, requestdetail.Input{Reason: *reason})
}

func (a *App) requestInfo(ctx context.Context, args []string) error {
	fs := a.flags("request-info")
	note := fs.String("note", "", "information requested from the requester")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	return a.invoke(ctx, id, fixed(workflow.ActionRequestInfo), requestdetail.Input{Reason: *note})
}

func (a *App) banking(ctx context.Context, args []string) error {
	fs := a.flags("banking")
	var in vendorrequests.BankingInput
	fs.StringVar(&in.BankName, "bank", "", "bank name")
	fs.StringVar(&in.AccountHolderName, "holder", "", "account holder name")
	fs.StringVar(&in.AccountNumber, "account", "", "account number")
	fs.StringVar(&in.SwiftBicCode, "swift", "", "SWIFT/BIC code")
	fs.StringVar(&in.Currency, "currency", "", "ISO-4217 currency")
	fs.StringVar(&in.PaymentTerms, "terms", "", "payment terms")
	fs.StringVar(&in.PreferredPaymentMethod, "method", "", "preferred payment method")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	return a.invoke(ctx, id, fixed(workflow.ActionAddBanking), requestdetail.Input{Banking: in})
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upload needs a file path", ErrUsage)
	}
	client, err := a.session()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	stored, err := client.Upload(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%d bytes\n%s\n", stored.FileName, stored.ContentType, stored.Size, stored.URL)
	return nil
}
