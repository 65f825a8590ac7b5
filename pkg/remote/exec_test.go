package remote

import (
	"context"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/variantdev/deploy/pkg/shell"
)

func TestExecRunner(t *testing.T) {
	fake := &shell.Fake{
		Expectations: map[shell.FakeInput]shell.FakeOutput{
			shell.NewFakeInput("ssh", []string{"-p", "2222", "root@web", "echo hi"}, nil): {
				Stdout: "hi\n",
			},
			shell.NewFakeInput("ssh", []string{"web", "false"}, nil): {
				Stderr:     "permission denied",
				ExitStatus: 255,
			},
		},
	}

	r := NewExecRunner(&shell.Shell{Exec: fake.Exec}, testr.New(t))

	out, err := r.Run(context.Background(), Host{User: "root", Hostname: "web", Opts: []string{"-p", "2222"}}, "echo hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi" {
		t.Errorf("unexpected output: expected=%q, got=%q", "hi", out)
	}

	_, err = r.Run(context.Background(), Host{Hostname: "web"}, "false")
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if got := err.Error(); got != `running "false" on web: exit status 255: permission denied` {
		t.Errorf("unexpected error message: %s", got)
	}
}
