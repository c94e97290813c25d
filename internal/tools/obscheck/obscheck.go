// Package obscheck probes a running server's health and auth surface and
// prints a styled, non-interactive report. It is wired to the `check`
// subcommand for use from a terminal or CI job.
package obscheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type probe struct {
	name       string
	method     string
	path       string
	wantStatus []int
}

// The auth probes run unauthenticated on purpose: a healthy gate answers
// 401 for them, so "Unauthorized" is the passing outcome.
var probes = []probe{
	{name: "liveness", method: http.MethodGet, path: "/health/live", wantStatus: []int{http.StatusOK}},
	{name: "readiness", method: http.MethodGet, path: "/health/ready", wantStatus: []int{http.StatusOK, http.StatusServiceUnavailable}},
	{name: "auth gate (security-info)", method: http.MethodGet, path: "/auth/security-info", wantStatus: []int{http.StatusUnauthorized}},
	{name: "auth gate (change-password)", method: http.MethodPost, path: "/auth/change-password", wantStatus: []int{http.StatusUnauthorized}},
	{name: "login surface", method: http.MethodPost, path: "/auth/login", wantStatus: []int{http.StatusBadRequest}},
}

type Checker struct {
	baseURL string
	client  *http.Client
	out     io.Writer
}

func New(baseURL string, timeout time.Duration, out io.Writer) *Checker {
	return &Checker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		out:     out,
	}
}

// Run executes every probe and returns an error if any failed, so the
// subcommand can exit non-zero.
func (c *Checker) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, titleStyle.Render("rollt server check"))
	fmt.Fprintln(c.out, dimStyle.Render(c.baseURL))

	failures := 0
	for _, p := range probes {
		status, err := c.execute(ctx, p)
		switch {
		case err != nil:
			failures++
			fmt.Fprintf(c.out, "%s %s %s\n", failStyle.Render("✗"), p.name, dimStyle.Render(err.Error()))
		case !acceptable(status, p.wantStatus):
			failures++
			fmt.Fprintf(c.out, "%s %s %s\n", failStyle.Render("✗"), p.name,
				dimStyle.Render(fmt.Sprintf("got %d, want one of %v", status, p.wantStatus)))
		default:
			fmt.Fprintf(c.out, "%s %s %s\n", okStyle.Render("✓"), p.name,
				dimStyle.Render(fmt.Sprintf("%d", status)))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d probes failed", failures, len(probes))
	}
	fmt.Fprintln(c.out, okStyle.Render("all probes passed"))
	return nil
}

func (c *Checker) execute(ctx context.Context, p probe) (int, error) {
	req, err := http.NewRequestWithContext(ctx, p.method, c.baseURL+p.path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func acceptable(status int, want []int) bool {
	for _, w := range want {
		if status == w {
			return true
		}
	}
	return false
}
