package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"

	"nammabody/internal/adapters/relayclient"
	"nammabody/internal/adapters/viewport"
	"nammabody/internal/application/orchestrators"
	"nammabody/internal/application/tracker"
	"nammabody/internal/config"
	"nammabody/internal/domain/contact"
	"nammabody/internal/domain/section"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// sendFlags holds the parsed flags for the send command.
type sendFlags struct {
	name     string
	email    string
	message  string
	program  string
	endpoint string
	timeout  time.Duration
}

// watchFlags holds the parsed flags for the watch command.
type watchFlags struct {
	sections []string
	headed   bool
	tour     bool
	dwell    time.Duration
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "WARN: ignoring .env:", err)
	}

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(3)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg.Client).ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func newRootCmd(client config.ClientConfig) *cobra.Command {
	root := &cobra.Command{
		Use:     "contactctl",
		Short:   "Exercise the Namma Body contact relay and section tracker",
		Version: version,
	}

	sf := sendFlags{endpoint: client.Endpoint, timeout: client.Timeout}
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Validate a contact submission and post it to the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), cmd.OutOrStdout(), sf)
		},
	}
	f := sendCmd.Flags()
	f.StringVar(&sf.name, "name", "", "Visitor name")
	f.StringVar(&sf.email, "email", "", "Visitor email address")
	f.StringVar(&sf.message, "message", "", "Message body (at least 10 characters)")
	f.StringVar(&sf.program, "program", "", "Program of interest (optional)")
	f.StringVar(&sf.endpoint, "endpoint", sf.endpoint, "Relay URL (default from CONTACT_ENDPOINT)")
	f.DurationVar(&sf.timeout, "timeout", sf.timeout, "Request timeout")

	wf := watchFlags{sections: section.NavSectionIDs, dwell: time.Second}
	watchCmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in Chromium and print the active section as it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], wf)
		},
	}
	w := watchCmd.Flags()
	w.StringSliceVar(&wf.sections, "sections", wf.sections, "Section ids to track, in page order")
	w.BoolVar(&wf.headed, "headed", false, "Show the browser window")
	w.BoolVar(&wf.tour, "tour", false, "Jump to each section in turn, as the nav links do, then exit")
	w.DurationVar(&wf.dwell, "dwell", wf.dwell, "Pause on each section during --tour")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Scroll a simulated landing page and print the active section at each step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.OutOrStdout())
		},
	}

	root.AddCommand(sendCmd, watchCmd, simulateCmd)
	return root
}

func runSend(ctx context.Context, out io.Writer, flags sendFlags) error {
	deps := orchestrators.SubmitContactDeps{Endpoint: flags.endpoint}
	if flags.endpoint != "" {
		deps.Relay = relayclient.New(flags.endpoint, flags.timeout)
	}

	res := orchestrators.ExecuteSubmitContact(ctx, contact.Submission{
		Name:    flags.name,
		Email:   flags.email,
		Message: flags.message,
		Program: flags.program,
	}, deps)
	if !res.OK {
		code := 1
		if res.Category == contact.CategoryValidation || res.Category == contact.CategoryConfiguration {
			code = 2
		}
		return codeError(code, "%s", res.Error)
	}
	fmt.Fprintln(out, "Message sent.")
	return nil
}

func runWatch(ctx context.Context, out io.Writer, url string, flags watchFlags) error {
	pw, err := playwright.Run()
	if err != nil {
		return codeError(3, "starting playwright: %s", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!flags.headed),
	})
	if err != nil {
		return codeError(3, "launching chromium: %s", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	if _, err := page.Goto(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	vp, err := viewport.NewPage(page)
	if err != nil {
		return err
	}
	defer vp.Close()

	tr, err := tracker.New(vp, flags.sections, section.NavOptions())
	if err != nil {
		return codeError(2, "%s", err)
	}
	unsubscribe := tr.OnChange(func(id string) {
		fmt.Fprintf(out, "%s\tactive=%s\n", time.Now().Format(time.TimeOnly), id)
	})
	defer unsubscribe()

	if err := tr.Start(); err != nil {
		return err
	}
	defer tr.Stop()

	if !flags.tour {
		<-ctx.Done()
		return nil
	}
	for _, id := range vp.Resolve(flags.sections) {
		if err := vp.ScrollToSection(id, section.NavScrollOffset); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(flags.dwell):
		}
	}
	return nil
}

// runSimulate scrolls a hero plus the nav sections, 900px each, through an 800px viewport.
func runSimulate(out io.Writer) error {
	ids := append([]string{"hero"}, section.NavSectionIDs...)
	heights := make([]float64, len(ids))
	for i := range heights {
		heights[i] = 900
	}
	sim := viewport.NewSimulator(800, viewport.Stack(ids, heights...))

	tr, err := tracker.New(sim, section.NavSectionIDs, section.NavOptions())
	if err != nil {
		return err
	}
	if err := tr.Start(); err != nil {
		return err
	}
	defer tr.Stop()

	end := 900 * float64(len(ids))
	for y := 0.0; y <= end; y += 150 {
		sim.ScrollTo(y)
		id, ok := tr.Current()
		if !ok {
			id = "-"
		}
		fmt.Fprintf(out, "scroll=%-5.0f active=%s\n", y, id)
	}
	return nil
}
