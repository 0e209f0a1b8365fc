package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/zenodo-publisher/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	called := false
	osExit = func(int) { called = true }
	t.Cleanup(func() { osExit = os.Exit })

	exitErrHandler(nil, nil)
	if called {
		t.Error("nil error must not exit")
	}
}

func TestExitErrHandler_Exits(t *testing.T) {
	var got int
	osExit = func(code int) { got = code }
	t.Cleanup(func() { osExit = os.Exit })

	exitErrHandler(nil, types.Errorf(types.ErrSourceState, "git", "working tree has local changes"))
	if got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "exit code 0 no message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantMsg:  "",
		},
		{
			name:     "exit coder with message",
			err:      cli.Exit("remote error: deposit: 503", 6),
			wantCode: 6,
			wantMsg:  "remote error: deposit: 503",
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner error", 42)),
			wantCode: 42,
			wantMsg:  "inner error",
		},
		{
			name:     "classified error",
			err:      fmt.Errorf("release: %w", types.Errorf(types.ErrAborted, "prompt", "declined")),
			wantCode: 7,
			wantMsg:  "Error: release: prompt: aborted by operator: declined",
		},
		{
			name:     "unclassified error",
			err:      errors.New("boom"),
			wantCode: 1,
			wantMsg:  "Error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
