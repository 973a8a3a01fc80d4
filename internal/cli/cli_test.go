package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutu-network/bounty/internal/daemon"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/security"
)

// run executes the root command with args against the current BOUNTY_HOME
// and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	taskBoard, listStatus, createDescription = "", "", ""
	listMine, listClaimed, listAll = false, false, false
	listLimit = 0
	tokenTTL = 0

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("bounty %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func setupHome(t *testing.T) {
	t.Helper()
	t.Setenv("BOUNTY_HOME", t.TempDir())
	t.Setenv("BOUNTY_LOG_LEVEL", "error")
}

func TestCommandsNeedIdentity(t *testing.T) {
	setupHome(t)

	_, err := run(t, "board", "init")
	if err == nil || !strings.Contains(err.Error(), "bounty keygen") {
		t.Errorf("board init without keys: err = %v, want hint to run keygen", err)
	}
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")

	if _, err := run(t, "keygen"); err == nil {
		t.Error("second keygen should fail without --force")
	}
	defer func() { keygenForce = false }()
	mustRun(t, "keygen", "--force")
}

func TestWhoami(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")

	out := mustRun(t, "whoami")
	for _, want := range []string{"Identity:", "Account:", "Board:"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q:\n%s", want, out)
		}
	}
}

func TestTaskLifecycle(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")

	_, err := run(t, "task", "create", "--title", "Fix bug", "--amount", "200")
	if !errors.Is(err, domain.ErrBoardNotFound) {
		t.Fatalf("create before board init: err = %v, want ErrBoardNotFound", err)
	}

	mustRun(t, "board", "init")
	if _, err := run(t, "board", "init"); !errors.Is(err, domain.ErrBoardExists) {
		t.Errorf("second board init: err = %v, want ErrBoardExists", err)
	}

	if out := mustRun(t, "wallet", "deposit", "500"); !strings.Contains(out, "balance 500") {
		t.Errorf("deposit output = %q", out)
	}

	out := mustRun(t, "task", "create", "--title", "Fix bug", "--description", "steps to reproduce", "--amount", "200")
	if !strings.Contains(out, "task #0 created, 200 escrowed") {
		t.Errorf("create output = %q", out)
	}
	if out := mustRun(t, "wallet", "balance"); strings.TrimSpace(out) != "300" {
		t.Errorf("balance after escrow = %q, want 300", out)
	}

	// The creator may work their own task.
	mustRun(t, "task", "claim", "0")
	if _, err := run(t, "task", "claim", "0"); !errors.Is(err, domain.ErrTaskAlreadyClaimed) {
		t.Errorf("second claim: err = %v, want ErrTaskAlreadyClaimed", err)
	}
	if _, err := run(t, "task", "approve", "0"); !errors.Is(err, domain.ErrInvalidTaskStatus) {
		t.Errorf("approve before submit: err = %v, want ErrInvalidTaskStatus", err)
	}

	mustRun(t, "task", "submit", "0", "https://example.com/pr/1")
	out = mustRun(t, "task", "approve", "0")
	if !strings.Contains(out, "(APPROVED)") {
		t.Errorf("approve output = %q", out)
	}

	if out := mustRun(t, "wallet", "balance"); strings.TrimSpace(out) != "500" {
		t.Errorf("balance after payout = %q, want 500", out)
	}

	out = mustRun(t, "task", "show", "0")
	for _, want := range []string{"Fix bug", "APPROVED", "Escrow:      0", "https://example.com/pr/1"} {
		if !strings.Contains(out, want) {
			t.Errorf("task show missing %q:\n%s", want, out)
		}
	}

	if out := mustRun(t, "task", "list"); !strings.Contains(out, "Fix bug") {
		t.Errorf("task list = %q", out)
	}
	if out := mustRun(t, "board", "show"); !strings.Contains(out, "Total bounties: 200") {
		t.Errorf("board show = %q", out)
	}
	if out := mustRun(t, "wallet", "audit"); !strings.Contains(out, "ledger balanced") {
		t.Errorf("audit = %q", out)
	}
}

func TestRejectRefunds(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")
	mustRun(t, "board", "init")
	mustRun(t, "wallet", "deposit", "100")
	mustRun(t, "task", "create", "--title", "Write docs", "--amount", "60")
	mustRun(t, "task", "claim", "0")
	mustRun(t, "task", "submit", "0", "draft")

	if out := mustRun(t, "task", "reject", "0"); !strings.Contains(out, "(REJECTED)") {
		t.Errorf("reject output = %q", out)
	}
	if out := mustRun(t, "wallet", "balance"); strings.TrimSpace(out) != "100" {
		t.Errorf("balance after refund = %q, want 100", out)
	}
}

func TestTaskArgumentErrors(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")
	mustRun(t, "board", "init")

	if _, err := run(t, "task", "show", "abc"); err == nil {
		t.Error("non-numeric task id should fail")
	}
	if _, err := run(t, "task", "show", "7"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("missing task: err = %v, want ErrTaskNotFound", err)
	}
	if _, err := run(t, "wallet", "deposit", "-5"); err == nil {
		t.Error("negative deposit should fail")
	}
	if out := mustRun(t, "task", "list"); !strings.Contains(out, "No tasks") {
		t.Errorf("empty list = %q", out)
	}
}

func TestBoardList(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")

	if out := mustRun(t, "board", "list"); !strings.Contains(out, "No boards") {
		t.Errorf("empty board list = %q", out)
	}
	mustRun(t, "board", "init")

	kp, err := self()
	if err != nil {
		t.Fatalf("self(): %v", err)
	}
	out := mustRun(t, "board", "list")
	if !strings.Contains(out, string(security.BoardAddress(kp.Identity()))) {
		t.Errorf("board list missing own board:\n%s", out)
	}
}

func TestTokenUsesConfiguredTTL(t *testing.T) {
	setupHome(t)
	mustRun(t, "keygen")

	cfg := daemon.DefaultConfig()
	cfg.API.TokenTTL = "2m"
	if err := daemon.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	raw := strings.TrimSpace(mustRun(t, "token"))
	id, err := security.VerifyToken(raw)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	kp, _ := self()
	if id != kp.Identity() {
		t.Errorf("token subject = %s, want %s", id, kp.Identity())
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != 2*time.Minute {
		t.Errorf("token ttl = %v, want 2m", ttl)
	}
}

func TestPrintErrorShowsStatus(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, domain.NewStatusError("claim_task", domain.ErrTaskAlreadyClaimed, domain.TaskCreated, domain.TaskClaimed))

	out := buf.String()
	for _, want := range []string{"TaskAlreadyClaimed", "expected: CREATED", "actual:   CLAIMED"} {
		if !strings.Contains(out, want) {
			t.Errorf("printError output missing %q:\n%s", want, out)
		}
	}
}
